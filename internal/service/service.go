package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"farewatch/internal/alerting"
	"farewatch/internal/events"
	"farewatch/internal/filter"
	"farewatch/internal/fraud"
	"farewatch/internal/metrics"
	"farewatch/internal/storage"
)

// Input is an analysis request as received at a boundary. Nil Amount means the
// field was absent; nil Timestamp defaults to evaluation time.
type Input struct {
	TicketID  string
	Station   string
	Amount    *decimal.Decimal
	Timestamp *time.Time
}

// Validate reports every missing required field at once.
func (in Input) Validate() error {
	var missing []string
	if strings.TrimSpace(in.TicketID) == "" {
		missing = append(missing, "ticketId")
	}
	if strings.TrimSpace(in.Station) == "" {
		missing = append(missing, "station")
	}
	if in.Amount == nil {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

func (in Input) transaction() fraud.Transaction {
	tx := fraud.Transaction{
		TicketID: strings.TrimSpace(in.TicketID),
		Station:  strings.TrimSpace(in.Station),
		Amount:   *in.Amount,
	}
	if in.Timestamp != nil {
		tx.Timestamp = *in.Timestamp
	}
	return tx
}

// Option customises an Analyzer.
type Option func(*Analyzer)

// WithNotifier sends an alert for every flagged transaction that was recorded.
func WithNotifier(n alerting.Notifier) Option {
	return func(a *Analyzer) {
		a.notifier = n
	}
}

// WithPublisher emits an event for every recorded analysis.
func WithPublisher(p events.Publisher) Option {
	return func(a *Analyzer) {
		a.publisher = p
	}
}

// Analyzer scores transactions, records them and serves the review workflow.
type Analyzer struct {
	scorer    *fraud.Scorer
	store     storage.TransactionStore
	reader    storage.TransactionReader
	notifier  alerting.Notifier
	publisher events.Publisher
	logger    zerolog.Logger
}

// New constructs an Analyzer. The store may additionally implement
// storage.TransactionReader to enable lookups, stats and export.
func New(scorer *fraud.Scorer, store storage.TransactionStore, logger zerolog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		scorer: scorer,
		store:  store,
		logger: logger.With().Str("component", "analyzer").Logger(),
	}
	if r, ok := store.(storage.TransactionReader); ok {
		a.reader = r
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Thresholds exposes the classifier cut points in use.
func (a *Analyzer) Thresholds() fraud.Thresholds {
	return a.scorer.Thresholds()
}

// Analyze validates, scores, classifies and records one transaction. A store
// failure after scoring returns *RecordError carrying the computed result.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (fraud.Result, error) {
	if err := in.Validate(); err != nil {
		return fraud.Result{}, err
	}

	res := a.scorer.Evaluate(in.transaction())

	if _, err := a.store.InsertTransaction(ctx, storage.NewRecord(res)); err != nil {
		reason := "write"
		if errors.Is(err, storage.ErrDuplicateKey) {
			reason = "duplicate"
		}
		metrics.StoreWriteFailures.WithLabelValues(reason).Inc()
		a.logger.Error().Err(err).
			Str("ticket_id", res.TicketID).
			Float64("fraud_score", res.FraudScore).
			Str("status", res.Status.String()).
			Msg("transaction scored but not recorded")
		return res, &RecordError{Result: res, Err: err}
	}

	metrics.ObserveAnalysis(res.Status.String(), res.FraudScore)
	a.logger.Info().
		Str("ticket_id", res.TicketID).
		Str("station", res.Station).
		Float64("fraud_score", res.FraudScore).
		Str("status", res.Status.String()).
		Interface("factors", res.Factors).
		Msg("transaction analysed")

	a.afterRecord(ctx, res)
	return res, nil
}

func (a *Analyzer) afterRecord(ctx context.Context, res fraud.Result) {
	if a.publisher != nil {
		if err := a.publisher.PublishAnalyzed(ctx, res); err != nil {
			a.logger.Error().Err(err).Str("ticket_id", res.TicketID).Msg("failed to publish analysed event")
		}
	}
	if a.notifier != nil && res.Status == fraud.StatusFlagged {
		note := alerting.NewNotification(res, a.scorer.Thresholds())
		if err := a.notifier.Notify(ctx, note); err != nil {
			a.logger.Error().Err(err).Str("ticket_id", res.TicketID).Msg("failed to dispatch alert")
		}
	}
}

// UpdateStatus applies an operator decision to a recorded transaction.
func (a *Analyzer) UpdateStatus(ctx context.Context, ticketID, status string) error {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return &ValidationError{Fields: []string{"ticketId"}}
	}
	st, err := fraud.ParseStatus(status)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidStatus, err)
	}

	if err := a.store.UpdateTransactionStatus(ctx, ticketID, st); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			a.logger.Error().Err(err).Str("ticket_id", ticketID).Msg("failed to update status")
		}
		return err
	}

	metrics.StatusUpdates.WithLabelValues(st.String()).Inc()
	a.logger.Info().Str("ticket_id", ticketID).Str("status", st.String()).Msg("status updated")
	return nil
}

// Recent lists up to limit recent records and narrows them with c.
func (a *Analyzer) Recent(ctx context.Context, limit int, c filter.Criteria) ([]storage.Record, error) {
	records, err := a.store.ListRecentTransactions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	return filter.Apply(records, c), nil
}

// Get looks up one record.
func (a *Analyzer) Get(ctx context.Context, ticketID string) (storage.Record, error) {
	if a.reader == nil {
		return storage.Record{}, ErrLookupUnsupported
	}
	return a.reader.GetTransaction(ctx, strings.TrimSpace(ticketID))
}

// Between returns records in [from, to], oldest first.
func (a *Analyzer) Between(ctx context.Context, from, to time.Time) ([]storage.Record, error) {
	if a.reader == nil {
		return nil, ErrLookupUnsupported
	}
	return a.reader.ListTransactionsBetween(ctx, from, to)
}

// Stats counts records per status.
func (a *Analyzer) Stats(ctx context.Context) (storage.StatusCounts, error) {
	if a.reader == nil {
		return nil, ErrLookupUnsupported
	}
	return a.reader.CountByStatus(ctx)
}
