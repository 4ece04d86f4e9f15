// Package query answers free-text questions over a scanned dataset category.
// Intent detection is a documented substring heuristic layered over typed
// row filtering; a structured query mode could replace the heuristic without
// touching storage.
package query

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/xaenox/teacher-bot/internal/store"
)

// Result is the outcome of one query execution. Rendered is the report body,
// Explanation a one-line summary of how many records matched.
type Result struct {
	Rendered    string
	Matched     int
	Explanation string
}

const (
	headRecent   = 10
	headFallback = 5
	maxDates     = 10
)

type annotated struct {
	row    store.Row
	ts     time.Time
	parsed bool
}

// Execute classifies the query intent and projects, filters and renders the
// matching rows. Empty datasets never fail; they report zero matches.
func Execute(rows []store.Row, queryText string) Result {
	annotatedRows := annotate(rows)
	// Newest first; rows without a parseable timestamp sort last.
	sort.SliceStable(annotatedRows, func(i, j int) bool {
		a, b := annotatedRows[i], annotatedRows[j]
		if a.parsed != b.parsed {
			return a.parsed
		}
		return a.ts.After(b.ts)
	})

	q := strings.ToLower(queryText)
	today := time.Now().UTC().Truncate(24 * time.Hour)

	var result Result
	switch {
	case strings.Contains(q, "today"):
		var matched []annotated
		for _, row := range annotatedRows {
			if row.parsed && row.ts.UTC().Truncate(24*time.Hour).Equal(today) {
				matched = append(matched, row)
			}
		}
		result.Matched = len(matched)
		result.Rendered = renderRows(matched)

	case strings.Contains(q, "recent") || strings.Contains(q, "show"):
		matched := head(annotatedRows, headRecent)
		result.Matched = len(matched)
		result.Rendered = renderRows(matched)

	case strings.Contains(q, "count"):
		if strings.Contains(q, "date") {
			table := countByDate(annotatedRows)
			result.Matched = len(table)
			result.Rendered = renderDateCounts(table)
		} else {
			// Unparseable timestamps still count toward the total.
			result.Matched = len(annotatedRows)
			result.Rendered = fmt.Sprintf("Total records: %d", len(annotatedRows))
		}

	default:
		matched := head(annotatedRows, headFallback)
		result.Matched = len(matched)
		result.Rendered = renderRows(matched)
	}

	result.Explanation = fmt.Sprintf("Found %d records matching your query.", result.Matched)
	return result
}

func annotate(rows []store.Row) []annotated {
	out := make([]annotated, 0, len(rows))
	for _, row := range rows {
		ts, ok := parseTimestamp(rowString(row, "timestamp"))
		out = append(out, annotated{row: row, ts: ts, parsed: ok})
	}
	return out
}

var tzOffsetSuffix = regexp.MustCompile(`[+-]\d{2}:?\d{2}$`)

// parseTimestamp accepts ISO-8601 with or without zone or fraction. Offsets,
// positive or negative, are stripped before parsing so mixed datasets compare
// on wall-clock time.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	s = strings.TrimSuffix(s, "Z")
	s = tzOffsetSuffix.ReplaceAllString(s, "")
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func head(rows []annotated, n int) []annotated {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}

type dateCount struct {
	Date  string
	Count int
}

func countByDate(rows []annotated) []dateCount {
	counts := make(map[string]int)
	for _, row := range rows {
		if !row.parsed {
			continue
		}
		counts[row.ts.UTC().Format("2006-01-02")]++
	}
	table := make([]dateCount, 0, len(counts))
	for date, count := range counts {
		table = append(table, dateCount{Date: date, Count: count})
	}
	// Highest count first; ties break by date.
	sort.Slice(table, func(i, j int) bool {
		if table[i].Count != table[j].Count {
			return table[i].Count > table[j].Count
		}
		return table[i].Date < table[j].Date
	})
	if len(table) > maxDates {
		table = table[:maxDates]
	}
	return table
}

func renderDateCounts(table []dateCount) string {
	if len(table) == 0 {
		return "No dated records found."
	}
	var b strings.Builder
	b.WriteString("## Record Counts by Date\n\n")
	fmt.Fprintf(&b, "%-12s %s\n", "Date", "Count")
	for _, entry := range table {
		fmt.Fprintf(&b, "%-12s %d\n", entry.Date, entry.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRows(rows []annotated) string {
	if len(rows) == 0 {
		return "No records found."
	}
	if _, ok := rows[0].row["query"]; ok {
		return renderSearchTable(rows)
	}
	return renderGeneric(rows)
}

// Search datasets get a compact two-column table instead of a field dump.
func renderSearchTable(rows []annotated) string {
	var b strings.Builder
	b.WriteString("## Recent Searches\n\n")
	fmt.Fprintf(&b, "%-50s %s\n", "Search Query", "Time")
	for _, row := range rows {
		when := "Unknown"
		if row.parsed {
			when = row.ts.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "%-50s %s\n", clip(rowString(row.row, "query"), 50), when)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderGeneric(rows []annotated) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		names := make([]string, 0, len(row.row))
		for name := range row.row {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "%s: %s\n", name, clip(rowValue(row.row, name), 200))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func rowString(row store.Row, name string) string {
	s, _ := row[name].(string)
	return s
}

func rowValue(row store.Row, name string) string {
	switch v := row[name].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
