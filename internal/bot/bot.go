// Package bot содержит главный модуль бота — инициализацию, запуск и остановку.
// bot.go подключает обработчики, запускает polling и маршрутизирует команды.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/vouch-bot/internal/bot/filters"
	"serotonyl.ru/vouch-bot/internal/bot/middleware"
	"serotonyl.ru/vouch-bot/internal/config"
	"serotonyl.ru/vouch-bot/internal/features/admin"
	"serotonyl.ru/vouch-bot/internal/features/audit"
	"serotonyl.ru/vouch-bot/internal/features/members"
	"serotonyl.ru/vouch-bot/internal/features/vouch"
)

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	vouchHandler *vouch.Handler
	auditHandler *audit.Handler
	adminHandler *admin.Handler

	memberService *members.Service
	adminService  *admin.Service
	auditService  *audit.Service

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	memberService *members.Service,
	adminService *admin.Service,
	auditService *audit.Service,
	vouchHandler *vouch.Handler,
	auditHandler *audit.Handler,
	adminHandler *admin.Handler,
	chatFilter *filters.ChatFilter,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:           api,
		cfg:           cfg,
		chatFilter:    chatFilter,
		rateLimiter:   middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		vouchHandler:  vouchHandler,
		auditHandler:  auditHandler,
		adminHandler:  adminHandler,
		memberService: memberService,
		adminService:  adminService,
		auditService:  auditService,
		parser:        NewCommandParser(),
		inflight:      make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				b.rateLimiter.Close()
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	// Кнопки разбора расхождений
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}

	// Обрабатываем новых участников (событие вступления)
	if update.Message != nil && update.Message.NewChatMembers != nil {
		if update.Message.Chat != nil && update.Message.Chat.ID == b.cfg.FloodChatID {
			b.handleNewMembers(ctx, update.Message.NewChatMembers)
		}
		return
	}

	// Обрабатываем обычные сообщения
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	message := update.Message

	// Логируем входящее
	middleware.LogMessage(message)

	// Проверяем доступ (FLOOD_CHAT_ID или DM участника)
	if !b.chatFilter.CheckAccess(ctx, message) {
		return
	}

	// Rate limiting
	if message.From != nil && !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	userID := message.From.ID

	// EnsureMember — ошибки нельзя игнорировать, иначе потом будет "оно не работает"
	if err := b.memberService.EnsureMember(ctx, userID,
		message.From.UserName, message.From.FirstName, message.From.LastName,
	); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("EnsureMember failed")
	}

	// Парсим команду
	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("parsed command")

	b.routeCommand(ctx, message, cmd, args)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, message *tgbotapi.Message, cmd string, args []string) {
	chatID := message.Chat.ID
	userID := message.From.ID
	privileged := b.isPrivileged(ctx, userID)

	switch cmd {
	case "start", "help":
		b.sendMessage(chatID, helpText)

	case "login":
		b.adminHandler.HandleLogin(ctx, chatID, userID, args, message.Chat.IsPrivate())

	case "logout":
		b.adminHandler.HandleLogout(ctx, chatID, userID)

	case "vouch":
		if b.cfg.FeatureVouchEnabled {
			var replyTo *tgbotapi.User
			if message.ReplyToMessage != nil {
				replyTo = message.ReplyToMessage.From
			}
			b.vouchHandler.HandleVouch(ctx, chatID, userID, args, replyTo, privileged)
		}

	case "vouches":
		if b.cfg.FeatureVouchEnabled {
			b.vouchHandler.HandleStats(ctx, chatID, userID, args)
		}

	case "whovouched":
		if b.cfg.FeatureVouchEnabled {
			b.vouchHandler.HandleWhoVouched(ctx, chatID, args)
		}

	case "reason":
		if b.cfg.FeatureVouchEnabled {
			b.vouchHandler.HandleReason(ctx, chatID, userID, args)
		}

	case "setvouch":
		b.vouchHandler.HandleSetCount(ctx, chatID, args, privileged)

	case "resetvouch":
		b.vouchHandler.HandleReset(ctx, chatID, args, privileged)

	case "unvouchable":
		b.vouchHandler.HandleUnvouchable(ctx, chatID, args, privileged)

	case "optin":
		b.vouchHandler.HandleTracking(ctx, chatID, userID, true)

	case "optout":
		b.vouchHandler.HandleTracking(ctx, chatID, userID, false)

	case "verify":
		if b.cfg.FeatureAuditEnabled {
			b.auditHandler.HandleVerify(ctx, chatID, args)
		}

	case "reconcile":
		if b.cfg.FeatureAuditEnabled {
			b.auditHandler.HandleReconcile(ctx, chatID, userID, args, privileged)
		}

	case "synctags":
		b.auditHandler.HandleSyncTags(ctx, chatID, privileged)

	case "reviewer":
		b.adminHandler.HandleAssignReviewer(ctx, chatID, args, privileged)

	case "backup":
		b.adminHandler.HandleBackup(ctx, chatID, privileged)

	default:
		if suggestion := SuggestCommand(cmd); suggestion != "" {
			b.sendMessage(chatID, "🤔 Не знаю такой команды. Может, !"+suggestion+"?")
		}
	}
}

// handleCallback обрабатывает нажатие кнопки разбора расхождения.
// Первый ревьюер побеждает; остальные нажатия получают пустой ответ
// и протухшую клавиатуру.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.From == nil {
		return
	}

	var accept bool
	switch cb.Data {
	case callbackAccept:
		accept = true
	case callbackReject:
		accept = false
	default:
		return
	}

	ref := audit.MessageRef{
		ChatID:    cb.Message.Chat.ID,
		MessageID: cb.Message.MessageID,
	}

	result, handled := b.auditService.Resolve(ctx, ref, cb.From.ID, accept)

	answer := tgbotapi.NewCallback(cb.ID, "")
	if handled {
		answer = tgbotapi.NewCallback(cb.ID, "Принято")
	}
	if _, err := b.api.Request(answer); err != nil {
		log.WithError(err).Debug("Не удалось ответить на callback")
	}
	if !handled {
		return
	}

	// Убираем кнопки и дописываем итог в исходное сообщение
	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, cb.Message.Text+"\n\n"+result)
	if _, err := b.api.Send(edit); err != nil {
		log.WithError(err).Debug("Не удалось обновить сообщение расхождения")
	}
}

// isPrivileged: статический список админов, флаг в базе или живая
// админ-сессия. Сессию заодно продлеваем.
func (b *Bot) isPrivileged(ctx context.Context, userID int64) bool {
	if b.memberService.IsPrivileged(ctx, userID) {
		return true
	}
	if b.adminService.HasActiveSession(ctx, userID) {
		b.adminService.TouchSession(ctx, userID)
		return true
	}
	return false
}

// handleNewMembers обрабатывает вступление новых участников.
func (b *Bot) handleNewMembers(ctx context.Context, newMembers []tgbotapi.User) {
	for _, user := range newMembers {
		if err := b.memberService.HandleNewMember(ctx, user.ID, user.UserName, user.FirstName, user.LastName); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Warn("HandleNewMember failed")
			continue
		}
		log.WithField("user", user.UserName).Info("Новый участник обработан")
	}
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

const helpText = `Я веду реестр поручительств. Команды:
!vouch @user [причина] — поручиться за участника
!vouches [@user] — сводка по счётчику
!whovouched @user — кто поручился
!reason @user текст — причина задним числом
!verify @user — проверить тег в имени
!optin / !optout — участие в учёте
Админские: !setvouch, !resetvouch, !unvouchable, !reconcile, !synctags, !reviewer, !backup
/login пароль (в личке) — админ-сессия`

// CommandParser парсит команды с префиксами !, . и /.
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"!", ".", "/"},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	text = strings.TrimSpace(text)
	parts := strings.Fields(text)

	if len(parts) == 0 {
		return "", nil, false
	}

	// /vouch@my_bot в группах
	command := strings.ToLower(parts[0])
	if i := strings.IndexByte(command, '@'); i >= 0 {
		command = command[:i]
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
