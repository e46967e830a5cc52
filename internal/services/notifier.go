package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/smartlipad/smartlipad-go/internal/config"
)

// Notifier pushes forecast summaries to a Telegram chat. With no bot token
// configured every notification is a silent no-op; notification delivery is
// never load-bearing for the pipeline.
type Notifier struct {
	bot     *bot.Bot
	chatID  int64
	logger  *logrus.Entry
	printer *message.Printer
}

// NewNotifier creates a notifier. An empty token yields a disabled notifier,
// not an error.
func NewNotifier(cfg config.TelegramConfig, logger *logrus.Logger) *Notifier {
	n := &Notifier{
		chatID:  cfg.ChatID,
		logger:  logger.WithField("component", "notifier"),
		printer: message.NewPrinter(language.English),
	}

	if cfg.BotToken == "" {
		n.logger.Info("Telegram notifier disabled, no bot token configured")
		return n
	}

	b, err := bot.New(cfg.BotToken)
	if err != nil {
		n.logger.WithError(err).Warn("Failed to initialize Telegram bot, notifier disabled")
		return n
	}
	n.bot = b
	return n
}

// Enabled reports whether notifications will actually be delivered.
func (n *Notifier) Enabled() bool {
	return n.bot != nil && n.chatID != 0
}

// NotifyForecast sends a short summary of a freshly computed forecast.
func (n *Notifier) NotifyForecast(ctx context.Context, result *ForecastResult) error {
	if !n.Enabled() || result == nil || result.BestTime == nil {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*%s → %s fare outlook*\n", result.Origin, result.Destination))
	sb.WriteString(n.printer.Sprintf("Cheapest month: %s at ₱%.0f\n", result.BestTime.Month, result.BestTime.Price))
	if result.MostExpensive != nil {
		sb.WriteString(n.printer.Sprintf("Priciest month: %s at ₱%.0f\n", result.MostExpensive.Month, result.MostExpensive.Price))
	}
	sb.WriteString(n.printer.Sprintf("Average: ₱%.0f (source: %s)", result.AvgFare, result.Source))

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      sb.String(),
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"route": result.Origin + "-" + result.Destination,
	}).Debug("Sent forecast notification")
	return nil
}
