// Package alerts delivers budget notifications over Telegram. The notifier is
// a no-op unless a bot token and chat id are configured.
package alerts

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/pennywiseapp/pennywise/internal/config"
)

// TelegramBot is the slice of the bot API the notifier uses.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
}

type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking).
type BotFactory func(token string) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token string) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, http.DefaultClient)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// Notifier pushes alert messages to a single Telegram chat.
type Notifier struct {
	enabled bool
	chatID  int64
	bot     TelegramBot
	factory BotFactory
}

// NewNotifier builds a Notifier from config. A disabled config yields a
// notifier whose methods succeed without sending.
func NewNotifier(cfg config.AlertsConfig) (*Notifier, error) {
	return NewNotifierWithFactory(cfg, defaultBotFactory)
}

// NewNotifierWithFactory creates a Notifier with a custom bot factory (for testing).
func NewNotifierWithFactory(cfg config.AlertsConfig, factory BotFactory) (*Notifier, error) {
	n := &Notifier{enabled: cfg.Enabled, chatID: cfg.ChatID, factory: factory}
	if !cfg.Enabled {
		return n, nil
	}
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("alerts enabled but telegram token is empty")
	}
	bot, err := factory(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	n.bot = bot
	log.Printf("[alerts] authorized as @%s", bot.GetSelf().UserName)
	return n, nil
}

// Enabled reports whether messages will actually be sent.
func (n *Notifier) Enabled() bool {
	return n.enabled && n.bot != nil
}

// Notify sends one message, splitting it if it exceeds the Telegram limit.
func (n *Notifier) Notify(text string) error {
	if !n.Enabled() {
		return nil
	}

	// Telegram caps messages at 4096 chars
	const maxLen = 4000
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			if idx := strings.LastIndex(chunk[:maxLen], "\n"); idx > 0 {
				chunk = chunk[:idx]
			} else {
				chunk = chunk[:maxLen]
			}
		}
		text = text[len(chunk):]

		msg := tgbotapi.NewMessage(n.chatID, chunk)
		if _, err := n.bot.Send(msg); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

// BudgetAlert is one category that crossed its spending threshold.
type BudgetAlert struct {
	TenantID string
	Category string
	Spent    decimal.Decimal
	Budget   decimal.Decimal
}

// NotifyBudget formats and sends a batch of threshold breaches. An empty
// batch sends nothing.
func (n *Notifier) NotifyBudget(alerts []BudgetAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("Budget alerts:\n")
	for _, a := range alerts {
		pct := decimal.NewFromInt(0)
		if a.Budget.IsPositive() {
			pct = a.Spent.Div(a.Budget).Mul(decimal.NewFromInt(100)).Round(0)
		}
		fmt.Fprintf(&b, "- %s/%s: spent %s of %s (%s%%)\n",
			a.TenantID, a.Category, a.Spent.StringFixed(2), a.Budget.StringFixed(2), pct)
	}
	return n.Notify(b.String())
}
