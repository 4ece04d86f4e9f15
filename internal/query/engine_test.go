package query

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/teacher-bot/internal/store"
)

// twelve rows spread over three days, newest day last in insertion order.
func sampleRows(t *testing.T) []store.Row {
	t.Helper()
	days := []string{"2026-08-20", "2026-08-21", "2026-08-22"}
	counts := []int{5, 4, 3}

	var rows []store.Row
	for i, day := range days {
		for j := 0; j < counts[i]; j++ {
			rows = append(rows, store.Row{
				"query":     fmt.Sprintf("search %s #%d", day, j),
				"timestamp": fmt.Sprintf("%sT0%d:00:00Z", day, j),
			})
		}
	}
	require.Len(t, rows, 12)
	return rows
}

func TestExecute_RecentHeadsNewestFirst(t *testing.T) {
	result := Execute(sampleRows(t), "show me recent searches")

	assert.Equal(t, 10, result.Matched)
	assert.Equal(t, "Found 10 records matching your query.", result.Explanation)

	// The newest day leads the rendering.
	lines := strings.Split(result.Rendered, "\n")
	require.Greater(t, len(lines), 4)
	assert.Contains(t, result.Rendered, "Recent Searches")
	assert.Contains(t, lines[3], "2026-08-22")
}

func TestExecute_CountScalar(t *testing.T) {
	rows := sampleRows(t)
	// An unparseable timestamp still counts toward the scalar total.
	rows = append(rows, store.Row{"query": "broken", "timestamp": "not a time"})

	result := Execute(rows, "count searches")
	assert.Equal(t, 13, result.Matched)
	assert.Equal(t, "Total records: 13", result.Rendered)
}

func TestExecute_CountByDate(t *testing.T) {
	rows := sampleRows(t)
	rows = append(rows, store.Row{"query": "undated"})

	result := Execute(rows, "count searches by date")
	assert.Equal(t, 3, result.Matched)

	// Highest count first; undated rows are excluded from the frequency table.
	lines := strings.Split(result.Rendered, "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[3], "2026-08-20")
	assert.Contains(t, lines[3], "5")
	assert.Contains(t, lines[5], "2026-08-22")
}

func TestExecute_CountByDate_TiesBreakByDate(t *testing.T) {
	rows := []store.Row{
		{"timestamp": "2026-08-22T10:00:00Z"},
		{"timestamp": "2026-08-20T10:00:00Z"},
		{"timestamp": "2026-08-21T10:00:00Z"},
	}

	result := Execute(rows, "count by date")
	lines := strings.Split(result.Rendered, "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[3], "2026-08-20")
	assert.Contains(t, lines[4], "2026-08-21")
	assert.Contains(t, lines[5], "2026-08-22")
}

func TestExecute_Today(t *testing.T) {
	now := time.Now().UTC()
	rows := []store.Row{
		{"query": "fresh", "timestamp": now.Format(time.RFC3339)},
		{"query": "stale", "timestamp": "2020-01-01T00:00:00Z"},
		{"query": "undated"},
	}

	result := Execute(rows, "what did I search today")
	assert.Equal(t, 1, result.Matched)
	assert.Contains(t, result.Rendered, "fresh")
	assert.NotContains(t, result.Rendered, "stale")
}

func TestExecute_FallbackHeadsFive(t *testing.T) {
	result := Execute(sampleRows(t), "tell me about my data")
	assert.Equal(t, 5, result.Matched)
}

func TestExecute_EmptyDataset(t *testing.T) {
	for _, queryText := range []string{"recent", "count", "today", "anything"} {
		result := Execute(nil, queryText)
		assert.Equal(t, 0, result.Matched, "query %q", queryText)
		assert.Equal(t, "Found 0 records matching your query.", result.Explanation)
		assert.NotEmpty(t, result.Rendered)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"2026-08-22T10:00:00Z", true},
		{"2026-08-22T10:00:00", true},
		{"2026-08-22T10:00:00.123456", true},
		{"2026-08-22 10:00:00", true},
		{"2026-08-22", true},
		{"2026-08-22T10:00:00+02:00", true},
		{"2026-08-22T10:00:00-05:00", true},
		{"2026-08-22T10:00:00.123456-05:00", true},
		{"2026-08-22T10:00:00+0200", true},
		{"", false},
		{"not a time", false},
	}
	for _, tt := range tests {
		_, ok := parseTimestamp(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
	}

	// Offsets compare on wall-clock time regardless of sign.
	ts, ok := parseTimestamp("2026-08-22T10:00:00-05:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 22, 10, 0, 0, 0, time.UTC), ts)
}
