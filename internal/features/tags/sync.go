// Package tags — sync.go приводит видимое имя участника к каноничному тегу.
// Синхронизация best-effort: ошибка переименования логируется и глотается,
// она НИКОГДА не валит учётную транзакцию, которая её запустила.
package tags

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/vouch-bot/internal/config"
	"serotonyl.ru/vouch-bot/internal/features/members"
)

// Renamer — примитив переименования из платформенного слоя.
// В Telegram это кастомный титул администратора; для обычных участников
// вызов падает с ошибкой прав, и это штатный случай.
type Renamer interface {
	Rename(ctx context.Context, userID int64, name string) error
}

// UnvouchableLookup отвечает, помечен ли участник как unvouchable.
// Узкий интерфейс вместо прямой ссылки на сервис поручительств.
type UnvouchableLookup interface {
	IsUnvouchable(ctx context.Context, userID int64) (bool, error)
}

// Synchronizer выводит каноничное имя из чистой основы, счётчика
// и флага unvouchable и применяет его, только если оно отличается.
type Synchronizer struct {
	memberService *members.Service
	unvouchable   UnvouchableLookup
	renamer       Renamer
	cfg           *config.Config
}

// NewSynchronizer создаёт синхронизатор тегов.
func NewSynchronizer(memberService *members.Service, unvouchable UnvouchableLookup, renamer Renamer, cfg *config.Config) *Synchronizer {
	return &Synchronizer{
		memberService: memberService,
		unvouchable:   unvouchable,
		renamer:       renamer,
		cfg:           cfg,
	}
}

// Sync синхронизирует тег одного участника.
// Возвращает true, если имя реально поменялось: повторный вызов на
// сошедшемся имени — no-op.
func (s *Synchronizer) Sync(ctx context.Context, userID int64) (bool, error) {
	m, err := s.memberService.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	// Отказавшихся от учёта не трогаем вообще
	if !m.TrackingEnabled {
		return false, nil
	}

	unvouchable, err := s.unvouchable.IsUnvouchable(ctx, userID)
	if err != nil {
		return false, err
	}

	current := m.CurrentDisplayName()
	base, ok := StripTags(current)
	if !ok {
		// Имя зачистилось в пустоту или осталась непарная скобка —
		// откат на неизменяемый хендл
		base = m.Handle()
	}

	composed := Compose(base, m.VouchCount, unvouchable, s.cfg.TagMaxNameLength)
	if composed == current {
		return false, nil
	}

	if err := s.renamer.Rename(ctx, userID, composed); err != nil {
		// Best-effort: нет прав на переименование — просто фиксируем в логе
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось переименовать участника")
		return false, nil
	}

	s.memberService.RememberDisplayName(ctx, userID, composed)
	log.WithFields(log.Fields{
		"user_id": userID,
		"name":    composed,
	}).Debug("Тег синхронизирован")
	return true, nil
}

// SyncAll проходит по всем участникам с включённым учётом.
// Между участниками пауза: массовый проход не должен душить обработку
// команд и лимиты Telegram на переименования. Возвращает число
// пройденных участников и число фактических переименований.
func (s *Synchronizer) SyncAll(ctx context.Context) (int, int, error) {
	tracked, err := s.memberService.Tracked(ctx)
	if err != nil {
		return 0, 0, err
	}

	renamed := 0
	for _, m := range tracked {
		select {
		case <-ctx.Done():
			return len(tracked), renamed, ctx.Err()
		default:
		}

		changed, err := s.Sync(ctx, m.UserID)
		if err != nil {
			log.WithError(err).WithField("user_id", m.UserID).Warn("Синк тега не удался")
		} else if changed {
			renamed++
		}

		time.Sleep(s.cfg.BulkIterationPause)
	}
	return len(tracked), renamed, nil
}
