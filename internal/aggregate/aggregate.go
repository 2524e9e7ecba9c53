// Package aggregate holds pure reductions over record slices used by the
// dashboard and analytics views.
package aggregate

import "time"

// MonthLabelLayout renders points as "Jan 2024"
const MonthLabelLayout = "Jan 2006"

// Point is one month bucket of a series
type Point struct {
	Label string    `json:"month"`
	Month time.Time `json:"-"`
	Value float64   `json:"value"`
}

// MonthlySeries buckets records into the monthCount calendar months ending with
// now's month, oldest first. Records are bucketed by their UTC year and month;
// records outside the window or rejected by filter are ignored. A nil filter
// keeps every record. Empty buckets are zero.
func MonthlySeries[T any](records []T, now time.Time, monthCount int, createdAt func(T) time.Time, value func(T) float64, filter func(T) bool) []Point {
	if monthCount < 1 {
		return []Point{}
	}

	now = now.UTC()
	last := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	first := last.AddDate(0, -(monthCount - 1), 0)

	points := make([]Point, monthCount)
	for i := range points {
		m := first.AddDate(0, i, 0)
		points[i] = Point{Label: m.Format(MonthLabelLayout), Month: m}
	}

	for _, r := range records {
		if filter != nil && !filter(r) {
			continue
		}
		ts := createdAt(r).UTC()
		idx := monthIndex(first, ts)
		if idx < 0 || idx >= monthCount {
			continue
		}
		points[idx].Value += value(r)
	}
	return points
}

func monthIndex(first, ts time.Time) int {
	return (ts.Year()-first.Year())*12 + int(ts.Month()) - int(first.Month())
}

// CategoryDistribution counts records per key. Categories with no records are absent.
func CategoryDistribution[T any](records []T, key func(T) string) map[string]int {
	out := make(map[string]int)
	for _, r := range records {
		out[key(r)]++
	}
	return out
}

// Sum adds value over the records accepted by filter (nil keeps all)
func Sum[T any](records []T, value func(T) float64, filter func(T) bool) float64 {
	var total float64
	for _, r := range records {
		if filter != nil && !filter(r) {
			continue
		}
		total += value(r)
	}
	return total
}

// Count is the number of records accepted by filter (nil keeps all)
func Count[T any](records []T, filter func(T) bool) int {
	if filter == nil {
		return len(records)
	}
	n := 0
	for _, r := range records {
		if filter(r) {
			n++
		}
	}
	return n
}

// One is a value func that counts records
func One[T any](T) float64 { return 1 }
