package publish

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf16"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/parrot/internal/config"
	"github.com/nextlevelbuilder/parrot/internal/retry"
)

// telegramMaxMessageLen is Telegram's limit for one message, in UTF-16
// code units.
const telegramMaxMessageLen = 4096

// Telegram posts to a channel or chat through a bot.
type Telegram struct {
	bot    *telego.Bot
	chatID int64
}

func NewTelegram(cfg config.TelegramConfig, opts ...telego.BotOption) (*Telegram, error) {
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram: chatId is required")
	}
	bot, err := telego.NewBot(cfg.Token, append([]telego.BotOption{telego.WithDiscardLogger()}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: cfg.ChatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Publish(ctx context.Context, text string) (string, error) {
	if n := telegramLen(text); n > telegramMaxMessageLen {
		return "", retry.Permanent(fmt.Errorf("telegram: message is %d units, limit %d: %w", n, telegramMaxMessageLen, ErrMessageTooLong))
	}
	msg, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(t.chatID), text))
	if err != nil {
		return "", fmt.Errorf("telegram: send message: %w", telegramError(err))
	}
	return strconv.Itoa(msg.MessageID), nil
}

func telegramLen(text string) int {
	return len(utf16.Encode([]rune(text)))
}
