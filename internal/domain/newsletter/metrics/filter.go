package metrics

import (
	"time"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

// Dated is any record with a normalized timestamp
type Dated interface {
	Timestamp() time.Time
}

// FilterRange keeps records with start <= timestamp <= end. A zero bound is open.
func FilterRange[T Dated](records []T, start, end time.Time) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		ts := r.Timestamp()
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && ts.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterRangeMonthly rounds start down to the first of its month before
// filtering, so monthly buckets at the range boundary are complete.
func FilterRangeMonthly[T Dated](records []T, start, end time.Time) []T {
	if !start.IsZero() {
		start = entity.MonthStart(start)
	}
	return FilterRange(records, start, end)
}

// Window is an inclusive date range. SnapToMonth selects the month-snapping filter.
type Window struct {
	Start       time.Time
	End         time.Time
	SnapToMonth bool
}

// LastDays returns the window covering the trailing days ending at now
func LastDays(days int, now time.Time) Window {
	return Window{Start: now.AddDate(0, 0, -days), End: now}
}

// Validate rejects windows whose start is after their end
func (w Window) Validate() error {
	if !w.Start.IsZero() && !w.End.IsZero() && w.Start.After(w.End) {
		return entity.ErrInvalidRange
	}
	return nil
}

// Apply filters posts to the window
func (w Window) Apply(posts []entity.Post) []entity.Post {
	return ApplyWindow(w, posts)
}

// ApplyWindow filters any dated records to the window
func ApplyWindow[T Dated](w Window, records []T) []T {
	if w.SnapToMonth {
		return FilterRangeMonthly(records, w.Start, w.End)
	}
	return FilterRange(records, w.Start, w.End)
}
