// Package vouch — handlers.go обрабатывает команды:
// !vouch, !vouches, !whovouched, !reason, !setvouch, !resetvouch,
// !unvouchable, !optin, !optout.
package vouch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/vouch-bot/internal/common"
	"serotonyl.ru/vouch-bot/internal/features/members"
	"serotonyl.ru/vouch-bot/internal/features/tags"
)

// Сервис отдаёт синхронизатору тегов флаг unvouchable через узкий интерфейс.
var _ tags.UnvouchableLookup = (*Service)(nil)

// Handler обрабатывает команды поручительств.
type Handler struct {
	service       *Service
	memberService *members.Service
	synchronizer  *tags.Synchronizer
	bot           *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик поручительств.
func NewHandler(service *Service, memberService *members.Service, synchronizer *tags.Synchronizer, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{
		service:       service,
		memberService: memberService,
		synchronizer:  synchronizer,
		bot:           bot,
	}
}

// HandleVouch — команда !vouch @username [причина] (или реплаем).
// Валидация и запись в сервисе; тег цели синхронизируется после коммита
// и best-effort: его ошибка не откатывает учёт.
func (h *Handler) HandleVouch(ctx context.Context, chatID, actorID int64, args []string, replyTo *tgbotapi.User, privileged bool) {
	target, rest, err := h.resolveTarget(ctx, args, replyTo)
	if err != nil {
		h.sendMessage(chatID, "❌ Укажите участника: !vouch @username [причина] или ответом на сообщение")
		return
	}
	reason := strings.TrimSpace(strings.Join(rest, " "))

	if err := h.service.Vouch(ctx, actorID, target.UserID, reason, privileged); err != nil {
		h.sendMessage(chatID, vouchErrorText(err))
		return
	}

	// Переименование не входит в учётную транзакцию
	if _, err := h.synchronizer.Sync(ctx, target.UserID); err != nil {
		log.WithError(err).WithField("user_id", target.UserID).Warn("Синк тега после поручительства не удался")
	}

	stats, err := h.service.GetStats(ctx, target.UserID)
	if err != nil {
		h.sendMessage(chatID, fmt.Sprintf("🤝 Поручительство за %s принято!", target.Handle()))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf(
		"🤝 Поручительство за %s принято! Теперь у участника %s",
		target.Handle(), common.FormatVouchCount(stats.VouchCount),
	))
}

// HandleStats — команда !vouches [@username]. Без аргумента — своя сводка.
func (h *Handler) HandleStats(ctx context.Context, chatID, userID int64, args []string) {
	target := userID
	label := "Твоя сводка"
	if len(args) > 0 {
		m, err := h.memberService.GetByUsername(ctx, strings.TrimPrefix(args[0], "@"))
		if err != nil {
			h.sendMessage(chatID, "❌ Пользователь не найден")
			return
		}
		target = m.UserID
		label = "Сводка " + m.Handle()
	}

	stats, err := h.service.GetStats(ctx, target)
	if err != nil {
		log.WithError(err).Error("Ошибка получения сводки")
		h.sendMessage(chatID, "❌ Ошибка получения сводки")
		return
	}

	text := fmt.Sprintf("📒 %s: %s (%d %s в реестре",
		label, common.FormatVouchCount(stats.VouchCount),
		stats.RecordCount, common.PluralizeRecords(stats.RecordCount))
	if stats.AdminAdjustment > 0 {
		text += fmt.Sprintf(", админская поправка %d", stats.AdminAdjustment)
	}
	text += ")"
	if stats.Unvouchable {
		text += "\n🚫 В списке unvouchable"
	}
	if !stats.TrackingEnabled {
		text += "\n📴 Учёт отключён"
	}
	h.sendMessage(chatID, text)
}

// HandleWhoVouched — команда !whovouched @username.
func (h *Handler) HandleWhoVouched(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		h.sendMessage(chatID, "❌ Формат: !whovouched @username")
		return
	}
	m, err := h.memberService.GetByUsername(ctx, strings.TrimPrefix(args[0], "@"))
	if err != nil {
		h.sendMessage(chatID, "❌ Пользователь не найден")
		return
	}

	records, err := h.service.Vouchers(ctx, m.UserID)
	if err != nil {
		log.WithError(err).Error("Ошибка чтения поручителей")
		h.sendMessage(chatID, "❌ Ошибка чтения реестра")
		return
	}
	if len(records) == 0 {
		h.sendMessage(chatID, fmt.Sprintf("За %s пока никто не поручился", m.Handle()))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🤝 За %s поручились:\n", m.Handle())
	for _, rec := range records {
		voucher, err := h.memberService.GetByUserID(ctx, rec.VoucherID)
		name := strconv.FormatInt(rec.VoucherID, 10)
		if err == nil {
			name = voucher.Handle()
		}
		fmt.Fprintf(&b, "• %s — %s\n", name, common.FormatDateTime(rec.CreatedAt))
	}
	h.sendMessage(chatID, b.String())
}

// HandleReason — команда !reason @username <текст>. Причина задним числом,
// только к собственной существующей записи; последняя версия побеждает.
func (h *Handler) HandleReason(ctx context.Context, chatID, actorID int64, args []string) {
	if len(args) < 2 {
		h.sendMessage(chatID, "❌ Формат: !reason @username текст причины")
		return
	}
	m, err := h.memberService.GetByUsername(ctx, strings.TrimPrefix(args[0], "@"))
	if err != nil {
		h.sendMessage(chatID, "❌ Пользователь не найден")
		return
	}

	reason := strings.TrimSpace(strings.Join(args[1:], " "))
	if err := h.service.AddReason(ctx, actorID, m.UserID, reason); err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			h.sendMessage(chatID, "❌ Вы не поручались за этого участника")
			return
		}
		log.WithError(err).Error("Ошибка записи причины")
		h.sendMessage(chatID, "❌ Ошибка записи причины")
		return
	}
	h.sendMessage(chatID, "📝 Причина сохранена")
}

// HandleSetCount — команда !setvouch @username N (только привилегированные).
// Счётчик выставляется напрямую, записи не трогаются: разницу фиксирует
// админская поправка и сводит сверка.
func (h *Handler) HandleSetCount(ctx context.Context, chatID int64, args []string, privileged bool) {
	if !privileged {
		h.sendMessage(chatID, "❌ "+common.ErrNotAdmin.Error())
		return
	}
	if len(args) < 2 {
		h.sendMessage(chatID, "❌ Формат: !setvouch @username число")
		return
	}
	m, err := h.memberService.GetByUsername(ctx, strings.TrimPrefix(args[0], "@"))
	if err != nil {
		h.sendMessage(chatID, "❌ Пользователь не найден")
		return
	}
	count, err := strconv.Atoi(args[1])
	if err != nil || count < 0 {
		h.sendMessage(chatID, "❌ Счётчик должен быть неотрицательным числом")
		return
	}

	if err := h.service.SetCount(ctx, m.UserID, count); err != nil {
		h.sendMessage(chatID, vouchErrorText(err))
		return
	}
	if _, err := h.synchronizer.Sync(ctx, m.UserID); err != nil {
		log.WithError(err).Warn("Синк тега после setvouch не удался")
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Счётчик %s выставлен: %s", m.Handle(), common.FormatVouchCount(count)))
}

// HandleReset — команда !resetvouch @username (только привилегированные).
func (h *Handler) HandleReset(ctx context.Context, chatID int64, args []string, privileged bool) {
	if !privileged {
		h.sendMessage(chatID, "❌ "+common.ErrNotAdmin.Error())
		return
	}
	if len(args) < 1 {
		h.sendMessage(chatID, "❌ Формат: !resetvouch @username")
		return
	}
	m, err := h.memberService.GetByUsername(ctx, strings.TrimPrefix(args[0], "@"))
	if err != nil {
		h.sendMessage(chatID, "❌ Пользователь не найден")
		return
	}

	if err := h.service.Reset(ctx, m.UserID); err != nil {
		h.sendMessage(chatID, vouchErrorText(err))
		return
	}
	if _, err := h.synchronizer.Sync(ctx, m.UserID); err != nil {
		log.WithError(err).Warn("Синк тега после resetvouch не удался")
	}
	h.sendMessage(chatID, fmt.Sprintf("♻️ %s обнулён: счётчик 0, записи удалены", m.Handle()))
}

// HandleUnvouchable — команда !unvouchable @username (только привилегированные).
// Переключает членство в списке.
func (h *Handler) HandleUnvouchable(ctx context.Context, chatID int64, args []string, privileged bool) {
	if !privileged {
		h.sendMessage(chatID, "❌ "+common.ErrNotAdmin.Error())
		return
	}
	if len(args) < 1 {
		h.sendMessage(chatID, "❌ Формат: !unvouchable @username")
		return
	}
	m, err := h.memberService.GetByUsername(ctx, strings.TrimPrefix(args[0], "@"))
	if err != nil {
		h.sendMessage(chatID, "❌ Пользователь не найден")
		return
	}

	current, err := h.service.IsUnvouchable(ctx, m.UserID)
	if err != nil {
		log.WithError(err).Error("Ошибка проверки unvouchable")
		h.sendMessage(chatID, "❌ Ошибка реестра")
		return
	}
	if err := h.service.SetUnvouchable(ctx, m.UserID, !current); err != nil {
		log.WithError(err).Error("Ошибка переключения unvouchable")
		h.sendMessage(chatID, "❌ Ошибка реестра")
		return
	}
	if _, err := h.synchronizer.Sync(ctx, m.UserID); err != nil {
		log.WithError(err).Warn("Синк тега после unvouchable не удался")
	}

	if current {
		h.sendMessage(chatID, fmt.Sprintf("✅ %s убран из списка unvouchable", m.Handle()))
	} else {
		h.sendMessage(chatID, fmt.Sprintf("🚫 %s добавлен в список unvouchable", m.Handle()))
	}
}

// HandleTracking — команды !optin / !optout: участие в учёте для себя.
func (h *Handler) HandleTracking(ctx context.Context, chatID, userID int64, enable bool) {
	if err := h.memberService.SetTracking(ctx, userID, enable); err != nil {
		log.WithError(err).Error("Ошибка переключения учёта")
		h.sendMessage(chatID, "❌ Ошибка переключения учёта")
		return
	}
	if enable {
		if _, err := h.synchronizer.Sync(ctx, userID); err != nil {
			log.WithError(err).Warn("Синк тега после optin не удался")
		}
		h.sendMessage(chatID, "✅ Учёт поручительств включён")
		return
	}
	h.sendMessage(chatID, "📴 Учёт поручительств отключён. Новые поручительства за вас приниматься не будут")
}

// resolveTarget находит цель команды: реплай приоритетнее @username.
// Возвращает участника и оставшиеся аргументы (причину).
func (h *Handler) resolveTarget(ctx context.Context, args []string, replyTo *tgbotapi.User) (*members.Member, []string, error) {
	if replyTo != nil {
		if err := h.memberService.EnsureMember(ctx, replyTo.ID, replyTo.UserName, replyTo.FirstName, replyTo.LastName); err != nil {
			return nil, nil, err
		}
		m, err := h.memberService.GetByUserID(ctx, replyTo.ID)
		return m, args, err
	}
	if len(args) == 0 {
		return nil, nil, common.ErrUserNotFound
	}
	m, err := h.memberService.GetByUsername(ctx, strings.TrimPrefix(args[0], "@"))
	if err != nil {
		return nil, nil, err
	}
	return m, args[1:], nil
}

// vouchErrorText переводит ошибки валидации в ответ пользователю.
// Неожиданные ошибки наружу не показываем — только в лог.
func vouchErrorText(err error) string {
	switch {
	case errors.Is(err, common.ErrSelfVouch),
		errors.Is(err, common.ErrAlreadyVouched),
		errors.Is(err, common.ErrUnvouchable),
		errors.Is(err, common.ErrTrackingDisabled),
		errors.Is(err, common.ErrCooldownActive),
		errors.Is(err, common.ErrBurstLimit),
		errors.Is(err, common.ErrUserNotFound),
		errors.Is(err, common.ErrNegativeCount),
		errors.Is(err, common.ErrStorageBusy):
		return "❌ " + err.Error()
	default:
		log.WithError(err).Error("Ошибка выдачи поручительства")
		return "❌ Не получилось, попробуйте позже"
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
