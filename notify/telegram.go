package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier delivers messages through the Telegram Bot API.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramNotifier authorizes the bot with the given token.
func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize bot: %w", err)
	}
	return &TelegramNotifier{bot: bot}, nil
}

// Send delivers text to one chat.
func (t *TelegramNotifier) Send(recipient int64, text string, html bool) error {
	msg := tgbotapi.NewMessage(recipient, text)
	if html {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", recipient, err)
	}
	return nil
}
