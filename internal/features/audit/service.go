// Package audit — service.go связывает проверку тегов, сверку реестра
// и разбор расхождений ревьюерами.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/vouch-bot/internal/common"
	"serotonyl.ru/vouch-bot/internal/config"
	"serotonyl.ru/vouch-bot/internal/db/postgres"
	"serotonyl.ru/vouch-bot/internal/features/members"
	"serotonyl.ru/vouch-bot/internal/features/tags"
	"serotonyl.ru/vouch-bot/internal/features/vouch"
)

// Статусы проверки тега.
const (
	StatusVerified = "VERIFIED"
	StatusFakeTags = "FAKE TAGS"
)

// Messenger — примитивы доставки из платформенного слоя.
type Messenger interface {
	// SendDisposition шлёт ревьюеру личное сообщение с двумя кнопками
	// («применить» / «отклонить») и возвращает ссылку на сообщение.
	SendDisposition(ctx context.Context, chatID int64, text string) (MessageRef, error)
	// BroadcastDisposition — то же в канал ревьюеров (fallback).
	BroadcastDisposition(ctx context.Context, text string) (MessageRef, error)
	// Announce — обычный отчёт в канал ревьюеров.
	Announce(ctx context.Context, text string) error
}

// Service сводит реестр и ведёт разбор расхождений.
type Service struct {
	vouchService  *vouch.Service
	memberService *members.Service
	synchronizer  *tags.Synchronizer
	store         *NotificationStore
	messenger     Messenger
	cfg           *config.Config
}

// NewService создаёт сервис аудита.
func NewService(
	vouchService *vouch.Service,
	memberService *members.Service,
	synchronizer *tags.Synchronizer,
	store *NotificationStore,
	messenger Messenger,
	cfg *config.Config,
) *Service {
	return &Service{
		vouchService:  vouchService,
		memberService: memberService,
		synchronizer:  synchronizer,
		store:         store,
		messenger:     messenger,
		cfg:           cfg,
	}
}

// claimedCount извлекает заявленный тегом счётчик участника.
// Смотрим и на сохранённое отображаемое имя, и на живое имя из
// Telegram: после нашего переименования подделка появляется во втором.
func claimedCount(m *members.Member) int {
	claimed := tags.ParseCount(m.CurrentDisplayName())
	liveName := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if n := tags.ParseCount(liveName); n > claimed {
		claimed = n
	}
	return claimed
}

// classifyTag решает статус проверки по заявленному и хранимому счётчикам.
// Тег, заявляющий БОЛЬШЕ хранимого, — подделка. Заявленный меньше или
// равный — норма (имя могло не догнать счётчик, это чинит синк, а не разбор).
func classifyTag(claimed, stored int) string {
	if claimed <= stored {
		return StatusVerified
	}
	return StatusFakeTags
}

// Verify сверяет заявленный тегом счётчик с хранимым. На подделке
// открывается ровно одно расхождение.
func (s *Service) Verify(ctx context.Context, targetID int64) (string, error) {
	m, err := s.memberService.GetByUserID(ctx, targetID)
	if err != nil {
		return "", common.ErrUserNotFound
	}

	claimed := claimedCount(m)
	if classifyTag(claimed, m.VouchCount) == StatusVerified {
		return StatusVerified, nil
	}

	log.WithFields(log.Fields{
		"user_id": targetID,
		"claimed": claimed,
		"stored":  m.VouchCount,
	}).Warn("Обнаружен поддельный тег")

	s.openDiscrepancy(ctx, m, claimed)
	return StatusFakeTags, nil
}

// openDiscrepancy рассылает расхождение ревьюерам.
// Личные сообщения каждому подходящему ревьюеру; если не дошло ни одно —
// один fallback-бродкаст в канал ревьюеров, помеченный так, чтобы итог
// разбора вернулся в канал, а не личным ответом.
func (s *Service) openDiscrepancy(ctx context.Context, m *members.Member, claimed int) {
	reviewers, err := s.memberService.Reviewers(ctx)
	if err != nil {
		log.WithError(err).Error("Не удалось получить список ревьюеров")
		return
	}

	text := fmt.Sprintf(
		"⚠️ Расхождение: %s показывает тег на %d, в реестре %d.\nОбнулить счётчик и записи?",
		m.Handle(), claimed, m.VouchCount,
	)

	c := &Case{
		MemberID: m.UserID,
		Claimed:  claimed,
		Stored:   m.VouchCount,
	}

	for _, r := range reviewers {
		// Сам фигурант себе расхождение не разбирает
		if r.UserID == m.UserID {
			continue
		}
		ref, err := s.messenger.SendDisposition(ctx, r.UserID, text)
		if err != nil {
			// Личка закрыта — штатный случай, идём дальше
			log.WithError(err).WithField("reviewer_id", r.UserID).Debug("ЛС ревьюеру не доставлено")
			continue
		}
		c.Refs = append(c.Refs, ref)
	}

	if len(c.Refs) == 0 {
		ref, err := s.messenger.BroadcastDisposition(ctx, text)
		if err != nil {
			log.WithError(err).Error("Расхождение не доставлено ни одному ревьюеру")
			return
		}
		c.Refs = append(c.Refs, ref)
		c.ViaChannel = true
	}

	s.store.Put(c)
	log.WithFields(log.Fields{
		"member_id": m.UserID,
		"messages":  len(c.Refs),
	}).Info("Открыто расхождение")
}

// Resolve применяет первую реакцию ревьюера на отслеживаемое сообщение.
// Реакции не-ревьюеров игнорируются; повторная реакция на закрытое
// расхождение — no-op. accept обнуляет участника и чистит его имя,
// reject просто закрывает расхождение без мутаций реестра.
func (s *Service) Resolve(ctx context.Context, ref MessageRef, reviewerID int64, accept bool) (string, bool) {
	if !s.memberService.IsReviewer(ctx, reviewerID) {
		return "", false
	}

	c, ok := s.store.Take(ref)
	if !ok {
		return "", false
	}

	var result string
	if accept {
		if err := s.vouchService.Reset(ctx, c.MemberID); err != nil {
			log.WithError(err).WithField("member_id", c.MemberID).Error("Не удалось обнулить участника")
			result = "❌ Обнуление не удалось, смотрите логи"
		} else {
			// Имя чистим best-effort: реестр уже консистентен
			if _, err := s.synchronizer.Sync(ctx, c.MemberID); err != nil {
				log.WithError(err).WithField("member_id", c.MemberID).Warn("Не удалось очистить имя")
			}
			result = "✅ Коррекция применена: счётчик обнулён, записи удалены"
		}
	} else {
		result = "🚫 Расхождение отклонено, реестр не тронут"
	}

	log.WithFields(log.Fields{
		"member_id":   c.MemberID,
		"reviewer_id": reviewerID,
		"accepted":    accept,
	}).Info("Расхождение разобрано")

	// Fallback-кейсы отчитываются в канал, а не личным ответом
	if c.ViaChannel {
		if err := s.messenger.Announce(ctx, result); err != nil {
			log.WithError(err).Warn("Не удалось отчитаться в канал ревьюеров")
		}
	}
	return result, true
}

// SweepNotifications выкидывает расхождения старше окна хранения.
// Дергается часовым кроном.
func (s *Service) SweepNotifications() {
	if n := s.store.Sweep(); n > 0 {
		log.WithField("expired", n).Info("Истекли неразобранные расхождения")
	}
}

// ReconReport — итог сверки одного участника.
type ReconReport struct {
	TargetID  int64
	Diff      int
	Created   int
	Removed   int
	Shortfall int
}

// Consistent: сверка ничего не меняла.
func (r ReconReport) Consistent() bool { return r.Diff == 0 }

// String — человекочитаемая строка для ответа ревьюеру.
func (r ReconReport) String() string {
	if r.Consistent() {
		return fmt.Sprintf("участник %d: уже консистентен", r.TargetID)
	}
	parts := []string{fmt.Sprintf("участник %d: diff %+d", r.TargetID, r.Diff)}
	if r.Created > 0 {
		parts = append(parts, fmt.Sprintf("создано %d", r.Created))
	}
	if r.Removed > 0 {
		parts = append(parts, fmt.Sprintf("удалено %d", r.Removed))
	}
	if r.Shortfall > 0 {
		parts = append(parts, fmt.Sprintf("недобор %d (пара уже существует)", r.Shortfall))
	}
	return strings.Join(parts, ", ")
}

// ReconcileUser сводит записи одного участника к его счётчику.
// Счётчик не мутируется никогда — только записи двигаются к нему.
func (s *Service) ReconcileUser(ctx context.Context, reviewerID, targetID int64) (*ReconReport, error) {
	m, err := s.memberService.GetByUserID(ctx, targetID)
	if err != nil {
		return nil, common.ErrUserNotFound
	}

	repo := s.vouchService.Repo()
	records, err := repo.Records(ctx, targetID)
	if err != nil {
		return nil, err
	}

	plan := PlanRecon(reviewerID, targetID, m.VouchCount, records, time.Now().UTC())
	report := &ReconReport{
		TargetID:  targetID,
		Diff:      plan.Diff,
		Created:   len(plan.Create),
		Removed:   len(plan.RemoveIDs),
		Shortfall: plan.Shortfall,
	}
	if plan.Consistent() {
		return report, nil
	}

	err = postgres.WithRetry(ctx, s.cfg.DBBusyTimeout, func(ctx context.Context) error {
		return repo.ApplyReconciliation(ctx, plan.Create, plan.RemoveIDs)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"target_id":   targetID,
		"reviewer_id": reviewerID,
		"diff":        plan.Diff,
		"created":     report.Created,
		"removed":     report.Removed,
		"shortfall":   report.Shortfall,
	}).Info("Сверка участника выполнена")
	return report, nil
}

// ReconcileAll сводит весь реестр: каждого участника с ненулевым счётчиком.
// Между участниками пауза, чтобы не голодала обработка команд.
func (s *Service) ReconcileAll(ctx context.Context, reviewerID int64) ([]*ReconReport, error) {
	candidates, err := s.memberService.WithVouches(ctx)
	if err != nil {
		return nil, err
	}

	var reports []*ReconReport
	for _, m := range candidates {
		select {
		case <-ctx.Done():
			return reports, ctx.Err()
		default:
		}

		report, err := s.ReconcileUser(ctx, reviewerID, m.UserID)
		if err != nil {
			log.WithError(err).WithField("target_id", m.UserID).Warn("Сверка участника не удалась")
			continue
		}
		reports = append(reports, report)

		time.Sleep(s.cfg.BulkIterationPause)
	}
	return reports, nil
}

// NightlyAudit пишет в канал ревьюеров сводку участников, у которых
// записи разошлись со счётчиком. Только отчёт, без мутаций.
func (s *Service) NightlyAudit(ctx context.Context) error {
	candidates, err := s.memberService.WithVouches(ctx)
	if err != nil {
		return err
	}

	repo := s.vouchService.Repo()
	var lines []string
	for _, m := range candidates {
		records, err := repo.RecordCount(ctx, m.UserID)
		if err != nil {
			log.WithError(err).WithField("user_id", m.UserID).Warn("Аудит: не удалось посчитать записи")
			continue
		}
		if records != m.VouchCount {
			lines = append(lines, fmt.Sprintf(
				"• %s: счётчик %d, записей %d (поправка %d)",
				m.Handle(), m.VouchCount, records, vouch.AdminAdjustment(m.VouchCount, records),
			))
		}

		time.Sleep(s.cfg.BulkIterationPause)
	}

	if len(lines) == 0 {
		log.Debug("Ночной аудит: реестр консистентен")
		return nil
	}

	text := "🌙 Ночной аудит реестра:\n" + strings.Join(lines, "\n")
	return s.messenger.Announce(ctx, text)
}
