package metrics

import (
	"sort"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

// Direction classifies the sign of a change
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
	DirectionNeutral  Direction = "neutral"
)

// DeltaResult is a "vs. previous period" indicator
type DeltaResult struct {
	// Percent change for rates, raw difference for counts
	Value     *float64  `json:"value"`
	Direction Direction `json:"direction"`

	// True when Value is a raw difference
	IsAbsolute bool `json:"is_absolute"`
}

// Delta splits the posts chronologically at floor(n/2) and compares the
// weighted aggregate of the second half against the first. This is an
// in-sample split of the current window, not a comparison with the window
// that precedes it.
func Delta(posts []entity.Post, m entity.Metric) DeltaResult {
	res := DeltaResult{Direction: DirectionNeutral, IsAbsolute: !m.IsRate()}
	if len(posts) < 2 {
		return res
	}

	sorted := make([]entity.Post, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	mid := len(sorted) / 2
	first := m.AggregateValue(Aggregate(sorted[:mid]))
	second := m.AggregateValue(Aggregate(sorted[mid:]))
	if first == nil || second == nil {
		return res
	}

	var v float64
	if m.IsRate() {
		if *first == 0 {
			return res
		}
		v = (*second - *first) / *first * 100
	} else {
		v = *second - *first
	}

	res.Value = &v
	switch {
	case v > 0:
		res.Direction = DirectionPositive
	case v < 0:
		res.Direction = DirectionNegative
	}
	return res
}
