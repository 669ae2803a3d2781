package bench

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"
)

// WriteCSV emits one semicolon-separated row per result: the configuration
// columns followed by that repetition's derived metrics, with no header
// row, matching the original benchmark's flat-file output.
func WriteCSV(w io.Writer, cfg Configuration, results []Result) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	for _, result := range results {
		row := []string{
			cfg.Description,
			fmt.Sprintf("%d", cfg.ListHeight),
			fmt.Sprintf("%d", cfg.NumberOfThreads),
			fmt.Sprintf("%d", cfg.NumberOfItems),
			fmt.Sprintf("%d", cfg.InitialNumberOfItems),
			scalingName(cfg.Scaling),
			fmt.Sprintf("%d", result.Repetition),
			fmt.Sprintf("%.9f", result.TotalTime.Seconds()),
			fmt.Sprintf("%.3f", result.TotalThroughput),
			fmt.Sprintf("%d", result.Insertions),
			fmt.Sprintf("%.6f", result.PercentageFailedInsert),
			fmt.Sprintf("%.6f", result.AverageRetriesInsert),
			fmt.Sprintf("%.3f", result.InsertThroughput),
			fmt.Sprintf("%d", result.Removals),
			fmt.Sprintf("%.6f", result.PercentageFailedRemove),
			fmt.Sprintf("%.6f", result.AverageRetriesRemove),
			fmt.Sprintf("%.3f", result.RemoveThroughput),
			fmt.Sprintf("%d", result.Finds),
			fmt.Sprintf("%.6f", result.AverageRetriesFind),
			fmt.Sprintf("%.3f", result.FindThroughput),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("bench: writing csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ResultFileName builds the "<prefix>_<hostname>_<timestamp>.csv" name the
// original benchmark used for its output files.
func ResultFileName(prefix string, now time.Time) string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s_%s_%s.csv", prefix, host, now.Format("2006-01-02_15:04:05"))
}
