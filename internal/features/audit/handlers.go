// Package audit — handlers.go обрабатывает команды проверки и сверки:
// !verify, !reconcile, !synctags.
package audit

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/vouch-bot/internal/common"
	"serotonyl.ru/vouch-bot/internal/features/members"
	"serotonyl.ru/vouch-bot/internal/features/tags"
)

// Handler обрабатывает команды аудита.
type Handler struct {
	service       *Service
	memberService *members.Service
	synchronizer  *tags.Synchronizer
	bot           *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик аудита.
func NewHandler(service *Service, memberService *members.Service, synchronizer *tags.Synchronizer, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{
		service:       service,
		memberService: memberService,
		synchronizer:  synchronizer,
		bot:           bot,
	}
}

// HandleVerify — команда !verify @username: сверяет тег в отображаемом
// имени с сохранённым счётчиком. Завышенный тег открывает расхождение
// и уведомляет ревьюеров.
func (h *Handler) HandleVerify(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		h.sendMessage(chatID, "❌ Формат: !verify @username")
		return
	}
	m, err := h.memberService.GetByUsername(ctx, strings.TrimPrefix(args[0], "@"))
	if err != nil {
		h.sendMessage(chatID, "❌ Пользователь не найден")
		return
	}

	status, err := h.service.Verify(ctx, m.UserID)
	if err != nil {
		log.WithError(err).Error("Ошибка проверки тега")
		h.sendMessage(chatID, "❌ Ошибка проверки")
		return
	}
	switch status {
	case StatusVerified:
		h.sendMessage(chatID, fmt.Sprintf("✅ %s: %s", m.Handle(), StatusVerified))
	case StatusFakeTags:
		h.sendMessage(chatID, fmt.Sprintf("⚠️ %s: %s. Ревьюеры уведомлены", m.Handle(), StatusFakeTags))
	}
}

// HandleReconcile — команда !reconcile [@username] (только привилегированные).
// Без аргумента сводит всех участников с ненулевым счётчиком.
// Синтезированные записи приписываются вызвавшему ревьюеру.
func (h *Handler) HandleReconcile(ctx context.Context, chatID, reviewerID int64, args []string, privileged bool) {
	if !privileged {
		h.sendMessage(chatID, "❌ "+common.ErrNotAdmin.Error())
		return
	}

	if len(args) > 0 {
		m, err := h.memberService.GetByUsername(ctx, strings.TrimPrefix(args[0], "@"))
		if err != nil {
			h.sendMessage(chatID, "❌ Пользователь не найден")
			return
		}
		report, err := h.service.ReconcileUser(ctx, reviewerID, m.UserID)
		if err != nil {
			log.WithError(err).Error("Ошибка сверки")
			h.sendMessage(chatID, "❌ Ошибка сверки")
			return
		}
		if report.Consistent() {
			h.sendMessage(chatID, fmt.Sprintf("✅ %s: счётчик и реестр сходятся", m.Handle()))
			return
		}
		h.sendMessage(chatID, fmt.Sprintf("🔧 %s: %s", m.Handle(), report.String()))
		return
	}

	reports, err := h.service.ReconcileAll(ctx, reviewerID)
	if err != nil {
		log.WithError(err).Error("Ошибка массовой сверки")
		h.sendMessage(chatID, "❌ Ошибка массовой сверки")
		return
	}

	fixed := 0
	var b strings.Builder
	for _, r := range reports {
		if r.Consistent() {
			continue
		}
		fixed++
		fmt.Fprintf(&b, "• %d: %s\n", r.TargetID, r.String())
	}
	if fixed == 0 {
		h.sendMessage(chatID, fmt.Sprintf("✅ Сверка завершена: %d участников, расхождений нет", len(reports)))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("🔧 Сверка завершена: %d участников, исправлено %d\n%s", len(reports), fixed, b.String()))
}

// HandleSyncTags — команда !synctags (только привилегированные):
// пересоставляет теги всем участникам с включённым учётом.
func (h *Handler) HandleSyncTags(ctx context.Context, chatID int64, privileged bool) {
	if !privileged {
		h.sendMessage(chatID, "❌ "+common.ErrNotAdmin.Error())
		return
	}

	total, renamed, err := h.synchronizer.SyncAll(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка массовой синхронизации тегов")
		h.sendMessage(chatID, "❌ Ошибка синхронизации тегов")
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("🏷 Синхронизация тегов: %d участников, переименовано %d", total, renamed))
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
