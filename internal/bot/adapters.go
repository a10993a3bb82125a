// adapters.go — платформенные примитивы для доменных сервисов:
// переименование участников и доставка уведомлений о расхождениях.
package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/vouch-bot/internal/config"
	"serotonyl.ru/vouch-bot/internal/features/audit"
)

// Данные callback-кнопок разбора расхождений.
const (
	callbackAccept = "disp:accept"
	callbackReject = "disp:reject"
)

// TitleRenamer меняет видимое имя участника через кастомный титул
// администратора. Для не-администраторов Telegram вернёт ошибку прав,
// вызывающая сторона обязана такое переживать.
type TitleRenamer struct {
	api *tgbotapi.BotAPI
	cfg *config.Config
}

// NewTitleRenamer создаёт переименователь.
func NewTitleRenamer(api *tgbotapi.BotAPI, cfg *config.Config) *TitleRenamer {
	return &TitleRenamer{api: api, cfg: cfg}
}

// Rename выставляет участнику кастомный титул в основном чате.
func (r *TitleRenamer) Rename(ctx context.Context, userID int64, name string) error {
	req := tgbotapi.SetChatAdministratorCustomTitle{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: r.cfg.FloodChatID,
			UserID: userID,
		},
		CustomTitle: name,
	}
	_, err := r.api.Request(req)
	return err
}

// Notifier доставляет уведомления о расхождениях: личные сообщения
// ревьюерам с кнопками и отчёты в канал ревьюеров.
type Notifier struct {
	api *tgbotapi.BotAPI
	cfg *config.Config
}

// NewNotifier создаёт доставщик уведомлений.
func NewNotifier(api *tgbotapi.BotAPI, cfg *config.Config) *Notifier {
	return &Notifier{api: api, cfg: cfg}
}

var dispositionKeyboard = tgbotapi.NewInlineKeyboardMarkup(
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Обнулить", callbackAccept),
		tgbotapi.NewInlineKeyboardButtonData("🚫 Отклонить", callbackReject),
	),
)

// SendDisposition шлёт ревьюеру сообщение с кнопками разбора.
func (n *Notifier) SendDisposition(ctx context.Context, chatID int64, text string) (audit.MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = dispositionKeyboard

	sent, err := n.api.Send(msg)
	if err != nil {
		return audit.MessageRef{}, err
	}
	return audit.MessageRef{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
}

// BroadcastDisposition — то же сообщение в канал ревьюеров.
func (n *Notifier) BroadcastDisposition(ctx context.Context, text string) (audit.MessageRef, error) {
	chatID := n.cfg.ReviewChatID
	if chatID == 0 {
		// Канал не настроен — последний рубеж это основной чат
		chatID = n.cfg.FloodChatID
	}
	return n.SendDisposition(ctx, chatID, text)
}

// Announce шлёт обычный отчёт в канал ревьюеров.
func (n *Notifier) Announce(ctx context.Context, text string) error {
	chatID := n.cfg.ReviewChatID
	if chatID == 0 {
		chatID = n.cfg.FloodChatID
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки отчёта в канал ревьюеров")
		return err
	}
	return nil
}
