package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farewatch/internal/alerting"
	"farewatch/internal/filter"
	"farewatch/internal/fraud"
	"farewatch/internal/metrics"
	"farewatch/internal/storage"
)

var noon = time.Date(2025, 4, 14, 12, 0, 0, 0, time.UTC)

func newScorer(t *testing.T) *fraud.Scorer {
	t.Helper()
	p := fraud.DefaultPolicy()
	p.OffHours.Location = "UTC"
	p.Random.Source = fraud.RandomNone
	s, err := fraud.NewScorer(p, fraud.WithClock(func() time.Time { return noon }))
	require.NoError(t, err)
	return s
}

func input(ticketID, station, amount string, ts time.Time) Input {
	a := decimal.RequireFromString(amount)
	return Input{TicketID: ticketID, Station: station, Amount: &a, Timestamp: &ts}
}

type recordingNotifier struct {
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n alerting.Notification) error {
	r.notes = append(r.notes, n)
	return nil
}

type recordingPublisher struct {
	results []fraud.Result
	err     error
}

func (r *recordingPublisher) PublishAnalyzed(_ context.Context, res fraud.Result) error {
	r.results = append(r.results, res)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

// writeOnlyStore implements only the core store contract.
type writeOnlyStore struct {
	insertErr error
	inserted  []storage.Record
}

func (s *writeOnlyStore) InsertTransaction(_ context.Context, rec storage.Record) (storage.Record, error) {
	if s.insertErr != nil {
		return storage.Record{}, s.insertErr
	}
	s.inserted = append(s.inserted, rec)
	return rec, nil
}

func (s *writeOnlyStore) ListRecentTransactions(context.Context, int) ([]storage.Record, error) {
	return s.inserted, nil
}

func (s *writeOnlyStore) UpdateTransactionStatus(context.Context, string, fraud.Status) error {
	return storage.ErrNotFound
}

func TestAnalyzeRejectsMissingFields(t *testing.T) {
	store := storage.NewMemoryStore()
	a := New(newScorer(t), store, zerolog.Nop())

	_, err := a.Analyze(context.Background(), Input{TicketID: "  "})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"ticketId", "station", "amount"}, verr.Fields)
	assert.Equal(t, "Missing required fields: ticketId, station, amount", verr.Error())

	recent, err := store.ListRecentTransactions(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestAnalyzeRecordsResult(t *testing.T) {
	store := storage.NewMemoryStore()
	a := New(newScorer(t), store, zerolog.Nop())

	res, err := a.Analyze(context.Background(), input("T-4587", "Central Station", "5.50", noon))
	require.NoError(t, err)
	assert.Equal(t, 0.6, res.FraudScore)
	assert.Equal(t, fraud.StatusPending, res.Status)
	assert.Equal(t, noon, res.ProcessedAt)

	recent, err := store.ListRecentTransactions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "T-4587", recent[0].TicketID)
	assert.Equal(t, 0.6, recent[0].FraudScore)
	assert.Equal(t, fraud.StatusPending, recent[0].Status)
}

func TestAnalyzeDefaultsMissingTimestamp(t *testing.T) {
	a := New(newScorer(t), storage.NewMemoryStore(), zerolog.Nop())
	amount := decimal.NewFromInt(5)

	res, err := a.Analyze(context.Background(), Input{TicketID: "T-1001", Station: "North Station", Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, noon, res.Timestamp)
}

func TestAnalyzeFlaggedNotifiesAndPublishes(t *testing.T) {
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	a := New(newScorer(t), storage.NewMemoryStore(), zerolog.Nop(),
		WithNotifier(notifier), WithPublisher(publisher))

	before := testutil.ToFloat64(metrics.TransactionsAnalyzed.WithLabelValues("flagged"))

	at := time.Date(2025, 4, 14, 3, 0, 0, 0, time.UTC)
	res, err := a.Analyze(context.Background(), input("T-1007", "East Station", "150", at))
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.FraudScore)
	assert.Equal(t, fraud.StatusFlagged, res.Status)

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, "T-1007", notifier.notes[0].TicketID)
	assert.Equal(t, 0.7, notifier.notes[0].FlagThreshold)
	require.Len(t, publisher.results, 1)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.TransactionsAnalyzed.WithLabelValues("flagged")))
}

func TestAnalyzeClearedDoesNotNotify(t *testing.T) {
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{err: errors.New("broker down")}
	a := New(newScorer(t), storage.NewMemoryStore(), zerolog.Nop(),
		WithNotifier(notifier), WithPublisher(publisher))

	res, err := a.Analyze(context.Background(), input("T-1001", "North Station", "5", noon))
	require.NoError(t, err, "publish failures must not fail the analysis")
	assert.Equal(t, fraud.StatusCleared, res.Status)
	assert.Empty(t, notifier.notes)
	assert.Len(t, publisher.results, 1)
}

func TestAnalyzeStoreFailureKeepsScore(t *testing.T) {
	cause := &storage.WriteError{Op: "insert transaction", Err: errors.New("connection reset")}
	publisher := &recordingPublisher{}
	a := New(newScorer(t), &writeOnlyStore{insertErr: cause}, zerolog.Nop(), WithPublisher(publisher))

	before := testutil.ToFloat64(metrics.StoreWriteFailures.WithLabelValues("write"))

	_, err := a.Analyze(context.Background(), input("T-4587", "Central Station", "5.50", noon))

	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 0.6, recErr.Result.FraudScore)
	assert.Equal(t, "T-4587", recErr.Result.TicketID)

	var we *storage.WriteError
	assert.ErrorAs(t, err, &we)
	assert.Empty(t, publisher.results)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.StoreWriteFailures.WithLabelValues("write")))
}

func TestAnalyzeDuplicateTicket(t *testing.T) {
	a := New(newScorer(t), storage.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	_, err := a.Analyze(ctx, input("T-4587", "Central Station", "5.50", noon))
	require.NoError(t, err)

	_, err = a.Analyze(ctx, input("T-4587", "Central Station", "5.50", noon))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestUpdateStatus(t *testing.T) {
	store := storage.NewMemoryStore()
	a := New(newScorer(t), store, zerolog.Nop())
	ctx := context.Background()

	_, err := a.Analyze(ctx, input("T-4587", "Central Station", "5.50", noon))
	require.NoError(t, err)

	require.NoError(t, a.UpdateStatus(ctx, "T-4587", "Cleared"))
	rec, err := a.Get(ctx, "T-4587")
	require.NoError(t, err)
	assert.Equal(t, fraud.StatusCleared, rec.Status)

	assert.ErrorIs(t, a.UpdateStatus(ctx, "T-9999", "cleared"), storage.ErrNotFound)
	assert.ErrorIs(t, a.UpdateStatus(ctx, "T-4587", "archived"), storage.ErrInvalidStatus)

	var verr *ValidationError
	assert.ErrorAs(t, a.UpdateStatus(ctx, "", "cleared"), &verr)

	rec, err = a.Get(ctx, "T-4587")
	require.NoError(t, err)
	assert.Equal(t, fraud.StatusCleared, rec.Status)
}

func TestRecentAppliesFilter(t *testing.T) {
	a := New(newScorer(t), storage.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	for _, in := range []Input{
		input("T-1001", "North Station", "5", noon),
		input("T-4587", "Central Station", "5.50", noon.Add(time.Minute)),
		input("T-1007", "East Station", "150", time.Date(2025, 4, 14, 3, 0, 0, 0, time.UTC)),
	} {
		_, err := a.Analyze(ctx, in)
		require.NoError(t, err)
	}

	all, err := a.Recent(ctx, 10, filter.Criteria{Station: filter.AllStations})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "T-4587", all[0].TicketID)

	flagged, err := a.Recent(ctx, 10, filter.Criteria{Status: fraud.StatusFlagged})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "T-1007", flagged[0].TicketID)

	counts, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Total())
}

func TestLookupsRequireReader(t *testing.T) {
	a := New(newScorer(t), &writeOnlyStore{}, zerolog.Nop())
	ctx := context.Background()

	_, err := a.Get(ctx, "T-1")
	assert.ErrorIs(t, err, ErrLookupUnsupported)
	_, err = a.Stats(ctx)
	assert.ErrorIs(t, err, ErrLookupUnsupported)
	_, err = a.Between(ctx, noon, noon)
	assert.ErrorIs(t, err, ErrLookupUnsupported)
}
