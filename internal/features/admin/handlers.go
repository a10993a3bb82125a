// Package admin — handlers.go обрабатывает команды привилегированного
// доступа: /login, /logout, !reviewer, !backup.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/vouch-bot/internal/common"
	"serotonyl.ru/vouch-bot/internal/features/members"
)

// Handler обрабатывает админ-команды.
type Handler struct {
	service       *Service
	memberService *members.Service
	bot           *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик админ-команд.
func NewHandler(service *Service, memberService *members.Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{
		service:       service,
		memberService: memberService,
		bot:           bot,
	}
}

// HandleLogin — команда /login <пароль>. Принимается только в личке:
// пароль в групповом чате виден всем.
func (h *Handler) HandleLogin(ctx context.Context, chatID, userID int64, args []string, isPrivate bool) {
	if !isPrivate {
		h.sendMessage(chatID, "❌ Авторизация только в личных сообщениях боту")
		return
	}
	if len(args) == 0 {
		h.sendMessage(chatID, "❌ Формат: /login пароль")
		return
	}

	if err := h.service.VerifyPassword(ctx, userID, strings.Join(args, " ")); err != nil {
		switch {
		case errors.Is(err, common.ErrTooManyAttempts),
			errors.Is(err, common.ErrWrongPassword):
			h.sendMessage(chatID, "❌ "+err.Error())
		default:
			log.WithError(err).Error("Ошибка авторизации")
			h.sendMessage(chatID, "❌ Ошибка авторизации, попробуйте позже")
		}
		return
	}
	h.sendMessage(chatID, "🔓 Сессия открыта на 24 часа")
}

// HandleLogout — команда /logout.
func (h *Handler) HandleLogout(ctx context.Context, chatID, userID int64) {
	if err := h.service.Logout(ctx, userID); err != nil {
		if errors.Is(err, common.ErrSessionExpired) {
			h.sendMessage(chatID, "❌ "+err.Error())
			return
		}
		log.WithError(err).Error("Ошибка закрытия сессии")
		h.sendMessage(chatID, "❌ Ошибка закрытия сессии")
		return
	}
	h.sendMessage(chatID, "🔒 Сессия закрыта")
}

// HandleAssignReviewer — команда !reviewer @username (только привилегированные):
// назначает участника ревьюером расхождений.
func (h *Handler) HandleAssignReviewer(ctx context.Context, chatID int64, args []string, privileged bool) {
	if !privileged {
		h.sendMessage(chatID, "❌ "+common.ErrNotAdmin.Error())
		return
	}
	if len(args) == 0 {
		h.sendMessage(chatID, "❌ Формат: !reviewer @username")
		return
	}
	m, err := h.memberService.GetByUsername(ctx, strings.TrimPrefix(args[0], "@"))
	if err != nil {
		h.sendMessage(chatID, "❌ Пользователь не найден")
		return
	}

	if err := h.service.AssignReviewer(ctx, m.UserID); err != nil {
		if errors.Is(err, common.ErrRoleTooLong) {
			h.sendMessage(chatID, "❌ "+err.Error())
			return
		}
		log.WithError(err).Error("Ошибка назначения ревьюера")
		h.sendMessage(chatID, "❌ Ошибка назначения ревьюера")
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("👁 %s назначен ревьюером", m.Handle()))
}

// HandleBackup — команда !backup (только привилегированные): выгружает
// реестр в CSV и отправляет файлом в чат.
func (h *Handler) HandleBackup(ctx context.Context, chatID int64, privileged bool) {
	if !privileged {
		h.sendMessage(chatID, "❌ "+common.ErrNotAdmin.Error())
		return
	}

	data, err := h.service.Export(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка выгрузки реестра")
		h.sendMessage(chatID, "❌ Ошибка выгрузки реестра")
		return
	}

	// Дата в имени файла — по Москве: выгрузки нумеруются сутками чата
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("vouch-ledger-%s.csv", common.GetMoscowTime().Format("2006-01-02")),
		Bytes: data,
	})
	doc.Caption = "📦 Выгрузка реестра поручительств"
	if _, err := h.bot.Send(doc); err != nil {
		log.WithError(err).Error("Ошибка отправки выгрузки")
		h.sendMessage(chatID, "❌ Не удалось отправить файл")
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
