package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/killallgit/foliochat/pkg/chat"
)

const maxTelegramMessage = 4096

// TelegramNotifier delivers notifications as Telegram messages to one
// chat. The bot connects on the first notification, so commands that never
// notify make no network calls.
type TelegramNotifier struct {
	token    string
	chatID   int64
	endpoint string
	client   tgbotapi.HTTPClient

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramNotifier creates a notifier using the public Bot API.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithClient(token, chatID, tgbotapi.APIEndpoint, nil)
}

// NewTelegramNotifierWithClient creates a notifier against endpoint, a
// format string taking the token and method name. A nil client uses the
// default HTTP client.
func NewTelegramNotifierWithClient(token string, chatID int64, endpoint string, client tgbotapi.HTTPClient) (*TelegramNotifier, error) {
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	return &TelegramNotifier{token: token, chatID: chatID, endpoint: endpoint, client: client}, nil
}

// connect returns the bot, creating it on first use. A failed attempt is
// retried on the next call.
func (n *TelegramNotifier) connect() (*tgbotapi.BotAPI, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.bot != nil {
		return n.bot, nil
	}

	var (
		bot *tgbotapi.BotAPI
		err error
	)
	if n.client == nil {
		bot, err = tgbotapi.NewBotAPIWithAPIEndpoint(n.token, n.endpoint)
	} else {
		bot, err = tgbotapi.NewBotAPIWithClient(n.token, n.endpoint, n.client)
	}
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	n.bot = bot
	return bot, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := title
	if body != "" {
		text = title + "\n\n" + body
	}
	text = chat.Truncate(text, maxTelegramMessage-3)

	bot, err := n.connect()
	if err != nil {
		return err
	}
	if _, err := bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
