package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"farewatch/internal/alerting"
	"farewatch/internal/config"
	"farewatch/internal/events"
	"farewatch/internal/filter"
	"farewatch/internal/fraud"
	"farewatch/internal/logging"
	"farewatch/internal/service"
	"farewatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer

	// openBackend is swapped in tests to share one store across commands.
	openBackend func(ctx context.Context, cfg *config.Config) (storage.Backend, error)
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:      cfg,
		Logger:      logging.Component(logger, "app"),
		Out:         os.Stdout,
		openBackend: storage.Open,
	}
}

func (a *App) openStore(ctx context.Context) (storage.Backend, func(), error) {
	backend, err := a.openBackend(ctx, a.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", a.Config.Storage.Driver, err)
	}
	return backend, backend.Close, nil
}

func (a *App) newScorer() (*fraud.Scorer, error) {
	scorer, err := fraud.NewScorer(a.Config.Scoring)
	if err != nil {
		return nil, fmt.Errorf("build scorer: %w", err)
	}
	return scorer, nil
}

// newAnalyzer wires scorer, store, alerting and events. The returned closer
// releases the event publisher; the store is closed by the caller.
func (a *App) newAnalyzer(store storage.TransactionStore) (*service.Analyzer, func(), error) {
	scorer, err := a.newScorer()
	if err != nil {
		return nil, nil, err
	}

	var opts []service.Option

	notifier, err := alerting.New(a.Config.Alerting, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	if notifier != nil {
		opts = append(opts, service.WithNotifier(notifier))
	}

	closer := func() {}
	if a.Config.Events.Enabled {
		publisher := events.NewKafkaPublisher(a.Config.Events)
		opts = append(opts, service.WithPublisher(publisher))
		closer = func() {
			if err := publisher.Close(); err != nil {
				a.Logger.Error().Err(err).Msg("failed to close event publisher")
			}
		}
	}

	return service.New(scorer, store, a.Logger, opts...), closer, nil
}

// AnalyzeOptions describe one transaction submitted from the CLI.
type AnalyzeOptions struct {
	TicketID  string
	Station   string
	Amount    string
	Timestamp *time.Time
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit    int
	Criteria filter.Criteria
}

// ExportOptions hold parameters for exporting recorded transactions.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// BackfillOptions configure synthetic history generation.
type BackfillOptions struct {
	From   time.Time
	To     time.Time
	Every  time.Duration
	DryRun bool
}
