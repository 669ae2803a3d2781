package bench

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mattkeenan/skiplist/workload"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVEmitsOneSemicolonRowPerResult(t *testing.T) {
	cfg := Configuration{
		Description: "SequentialSkipList",
		ListHeight:  16,
		Config: workload.Config{
			NumberOfThreads:      4,
			NumberOfItems:        1000,
			InitialNumberOfItems: 500,
			Scaling:              workload.Strong,
		},
	}
	results := []Result{
		{Repetition: 0, TotalTime: 2 * time.Second, TotalThroughput: 123.4, Insertions: 1000},
		{Repetition: 1, TotalTime: time.Second, TotalThroughput: 456.7, Insertions: 1000},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, cfg, results))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		require.NotContains(t, line, ",")
		fields := strings.Split(line, ";")
		require.Len(t, fields, 20)
		require.Equal(t, "SequentialSkipList", fields[0])
		require.Equal(t, "strong", fields[5])
	}
}

func TestResultFileNameEncodesPrefixHostnameAndTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	name := ResultFileName("skipbench", now)

	require.True(t, strings.HasPrefix(name, "skipbench_"))
	require.True(t, strings.HasSuffix(name, ".csv"))
	require.Contains(t, name, "2026-03-05_14:30:00")
}
