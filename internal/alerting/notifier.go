package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"farewatch/internal/config"
	"farewatch/internal/fraud"
)

// Channel names accepted in alerting.channels.
const (
	ChannelTelegram = "telegram"
	ChannelLog      = "log"
)

// Notification describes one flagged ticket transaction.
type Notification struct {
	TicketID      string
	Station       string
	Amount        decimal.Decimal
	Timestamp     time.Time
	FraudScore    float64
	FlagThreshold float64
	Factors       map[string]float64
	Channels      []string
}

// NewNotification builds the alert payload for an analysed transaction.
func NewNotification(res fraud.Result, thresholds fraud.Thresholds) Notification {
	return Notification{
		TicketID:      res.TicketID,
		Station:       res.Station,
		Amount:        res.Amount,
		Timestamp:     res.Timestamp,
		FraudScore:    res.FraudScore,
		FlagThreshold: thresholds.Flag,
		Factors:       res.Factors,
	}
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// New assembles the notifiers named in cfg.Channels. It returns nil when
// alerting is disabled.
func New(cfg config.AlertingConfig, logger zerolog.Logger) (Notifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var fanout Multi
	for _, ch := range cfg.Channels {
		switch strings.ToLower(strings.TrimSpace(ch)) {
		case ChannelTelegram:
			if !cfg.Telegram.Enabled {
				logger.Warn().Msg("telegram channel listed but alerting.telegram.enabled is false")
				continue
			}
			fanout.notifiers = append(fanout.notifiers, NewTelegramNotifier(
				cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, cfg.Timeout, logger))
		case ChannelLog:
			fanout.notifiers = append(fanout.notifiers, NewLogNotifier(logger))
		default:
			return nil, fmt.Errorf("unknown alerting channel %q", ch)
		}
		fanout.channels = append(fanout.channels, ch)
	}
	if len(fanout.notifiers) == 0 {
		return nil, nil
	}
	return &fanout, nil
}

// Multi sends each notification to every configured notifier.
type Multi struct {
	notifiers []Notifier
	channels  []string
}

// Notify attempts every notifier and joins their errors.
func (m *Multi) Notify(ctx context.Context, note Notification) error {
	note.Channels = m.channels
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes alerts to the application log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the alert at warn level.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().
		Str("ticket_id", note.TicketID).
		Str("station", note.Station).
		Str("amount", note.Amount.StringFixed(2)).
		Float64("fraud_score", note.FraudScore).
		Msg("transaction flagged")
	return nil
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false: %s", result.Description)
	}

	n.logger.Info().
		Str("ticket_id", note.TicketID).
		Float64("fraud_score", note.FraudScore).
		Msg("alert sent")
	return nil
}

func renderMessage(note Notification) string {
	var b strings.Builder
	b.WriteString("[Farewatch] Flagged ticket transaction\n")
	fmt.Fprintf(&b, "Ticket: %s\n", note.TicketID)
	fmt.Fprintf(&b, "Station: %s\n", note.Station)
	fmt.Fprintf(&b, "Amount: %s\n", note.Amount.StringFixed(2))
	fmt.Fprintf(&b, "Time: %s UTC\n", note.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Score: %.3f (flag above %.3f, %s)\n", note.FraudScore, note.FlagThreshold, fraud.RiskLevelFor(note.FraudScore))

	if len(note.Factors) > 0 {
		names := make([]string, 0, len(note.Factors))
		for name := range note.Factors {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s=%.3f", name, note.Factors[name])
		}
		fmt.Fprintf(&b, "Factors: %s\n", strings.Join(parts, ", "))
	}
	if len(note.Channels) > 0 {
		fmt.Fprintf(&b, "Channels: %s\n", strings.Join(note.Channels, ","))
	}
	return b.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*Multi)(nil)
)
