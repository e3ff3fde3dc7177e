package digest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"well-go/internal/config"
	"well-go/internal/well"
)

// LogNotifier writes digests to the application log.
type LogNotifier struct {
	logger well.Logger
}

func NewLogNotifier(logger well.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, userID, text string) error {
	n.logger.Info("digest", "user", userID, "text", text)
	return nil
}

// TelegramNotifier posts digests to a single Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier connects to the Bot API with token.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithEndpoint(token, tgbotapi.APIEndpoint, chatID)
}

// NewTelegramNotifierWithEndpoint connects to a Bot API server at endpoint,
// a format string taking the token and the method name.
func NewTelegramNotifierWithEndpoint(token, endpoint string, chatID int64) (*TelegramNotifier, error) {
	if token == "" {
		return nil, errors.New("telegram notifier requires telegram_token")
	}
	if chatID == 0 {
		return nil, errors.New("telegram notifier requires telegram_chat_id")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, userID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

// NewNotifierFromConfig creates a Notifier based on cfg.Notifier.
func NewNotifierFromConfig(cfg config.DigestConfig, logger well.Logger) (Notifier, error) {
	switch cfg.Notifier {
	case "", "log":
		return NewLogNotifier(logger), nil
	case "telegram":
		n, err := NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown notifier type: %s", cfg.Notifier)
	}
}
