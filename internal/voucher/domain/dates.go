package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var compactDate = regexp.MustCompile(`^\d{8}$`)

var monthNumbers = map[string]string{
	"Jan": "01", "Feb": "02", "Mar": "03", "Apr": "04", "May": "05", "Jun": "06",
	"Jul": "07", "Aug": "08", "Sep": "09", "Oct": "10", "Nov": "11", "Dec": "12",
}

// NormalizeDate accepts an 8-digit YYYYMMDD string or a DD-Mon-YY/DD-Mon-YYYY
// text form and normalizes to YYYYMMDD. Unrecognized formats pass through
// unchanged; normalization is best effort, not an error.
func NormalizeDate(raw string) string {
	if raw == "" {
		return ""
	}
	if compactDate.MatchString(raw) {
		return raw
	}
	parts := strings.Split(raw, "-")
	if len(parts) != 3 {
		return raw
	}
	day := parts[0]
	if len(day) == 1 {
		day = "0" + day
	}
	year := parts[2]
	if len(year) == 2 {
		year = "20" + year
	}
	month, ok := monthNumbers[parts[1]]
	if !ok {
		month = "00"
	}
	return year + month + day
}

// FormatDate renders t as a compact YYYYMMDD key.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%04d%02d%02d", t.Year(), int(t.Month()), t.Day())
}

// ChunkDates partitions [from, to] (inclusive, YYYYMMDD) into consecutive
// single-day chunks. A range where from == to collapses to exactly one chunk.
// An unparseable boundary yields a single chunk covering the raw range.
func ChunkDates(from, to string) []DateChunk {
	start, err1 := time.Parse("20060102", from)
	end, err2 := time.Parse("20060102", to)
	if err1 != nil || err2 != nil || end.Before(start) {
		return []DateChunk{{From: from, To: to}}
	}
	var chunks []DateChunk
	for cursor := start; !cursor.After(end); cursor = cursor.AddDate(0, 0, 1) {
		day := FormatDate(cursor)
		chunks = append(chunks, DateChunk{From: day, To: day})
	}
	return chunks
}

// DateChunk is one inclusive day range of a sync run.
type DateChunk struct {
	From string
	To   string
}
