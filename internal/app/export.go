package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"farewatch/internal/fraud"
	"farewatch/internal/storage"
)

const defaultExportWindow = 24 * time.Hour

// Export renders recorded transactions as CSV and/or a fraud score chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.Add(-defaultExportWindow)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	analyzer, err := a.readAnalyzer(store)
	if err != nil {
		return err
	}

	records, err := analyzer.Between(ctx, from, to)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Time("from", from).Time("to", to).Msg("no transactions found for export window")
		return nil
	}

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, records); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" && len(records) < 2 {
		a.Logger.Warn().Int("total", len(records)).Msg("need at least two transactions to chart, skipping png")
	} else if opts.PNGPath != "" {
		downsampled := downsampleRecords(records, opts.MaxPoints)
		a.Logger.Info().Int("total", len(records)).Int("plotted", len(downsampled)).Msg("rendering fraud score chart")
		if err := writeScoresPNG(opts.PNGPath, downsampled, analyzer.Thresholds()); err != nil {
			return err
		}
	}

	return nil
}

func downsampleRecords(records []storage.Record, max int) []storage.Record {
	if max <= 1 || len(records) <= max {
		return records
	}

	result := make([]storage.Record, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeRecordsCSV(path string, records []storage.Record) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"id", "ticket_id", "timestamp", "station", "amount", "fraud_score", "risk_level", "status", "created_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.ID.String(),
			rec.TicketID,
			rec.Timestamp.UTC().Format(time.RFC3339),
			rec.Station,
			rec.Amount.StringFixed(2),
			strconv.FormatFloat(rec.FraudScore, 'f', 3, 64),
			string(rec.RiskLevel()),
			rec.Status.String(),
			rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeScoresPNG(path string, records []storage.Record, thresholds fraud.Thresholds) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(records))
	scores := make([]float64, len(records))
	flag := make([]float64, len(records))
	clearLine := make([]float64, len(records))
	for i, rec := range records {
		x[i] = rec.Timestamp.UTC()
		scores[i] = rec.FraudScore
		flag[i] = thresholds.Flag
		clearLine[i] = thresholds.Clear
	}

	scoreFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Fraud score",
			ValueFormatter: scoreFormatter,
			Range:          &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Fraud score",
				XValues: x,
				YValues: scores,
			},
			chart.TimeSeries{
				Name:    "Flag threshold",
				XValues: x,
				YValues: flag,
			},
			chart.TimeSeries{
				Name:    "Clear threshold",
				XValues: x,
				YValues: clearLine,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
