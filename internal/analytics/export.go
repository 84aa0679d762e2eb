package analytics

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var exportHeader = []string{"ID", "Date", "Text", "Sentiment", "Emotion", "Confidence", "Source"}

// ExportCSV writes every review from the last days days (default 30, at most
// 90) as CSV, newest first.
func (a *Aggregator) ExportCSV(ctx context.Context, w io.Writer, days int) (int, error) {
	days = clampDays(days, DefaultTrendDays, MaxDashboardDays)
	reviews, _, err := a.window(ctx, days, "")
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range reviews {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			r.Text,
			string(r.Sentiment),
			string(r.Emotion),
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
			r.SourceOrDefault(),
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return len(reviews), cw.Error()
}
