package insight

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

// Kind of headline insight
type Kind string

const (
	KindCTRDeviation      Kind = "ctr_deviation"
	KindOpenRateDeviation Kind = "open_rate_deviation"
	KindStrongTrend       Kind = "strong_trend"
	KindBestPerformer     Kind = "best_performer"
	KindNeutral           Kind = "neutral"
)

// Candidate thresholds and fixed priorities
const (
	ctrDeviationThreshold  = 15.0
	openDeviationThreshold = 10.0
	baselineDays           = 30

	trendPriority         = 25.0
	bestPerformerPriority = 12.0
)

// Insight is one natural-language observation with a priority score
type Insight struct {
	Kind     Kind          `json:"kind"`
	Metric   entity.Metric `json:"metric,omitempty"`
	Message  string        `json:"message"`
	Priority float64       `json:"priority"`
}

// Candidates generates every qualifying insight, highest priority first
func Candidates(posts []entity.Post, now time.Time) []Insight {
	if len(posts) == 0 {
		return nil
	}
	sorted := make([]entity.Post, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var out []Insight
	latest := sorted[len(sorted)-1]
	history := sorted[:len(sorted)-1]

	if in, ok := deviation(latest, history, entity.MetricCTR, "click-through rate", ctrDeviationThreshold, now); ok {
		in.Kind = KindCTRDeviation
		out = append(out, in)
	}
	if in, ok := deviation(latest, history, entity.MetricOpenRate, "open rate", openDeviationThreshold, now); ok {
		in.Kind = KindOpenRateDeviation
		out = append(out, in)
	}
	if in, ok := strongTrend(sorted); ok {
		out = append(out, in)
	}
	if in, ok := bestThisMonth(sorted, now); ok {
		out = append(out, in)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// Primary returns the highest-priority candidate, or a neutral summary of the
// dataset when nothing stands out.
func Primary(posts []entity.Post, now time.Time) Insight {
	if c := Candidates(posts, now); len(c) > 0 {
		return c[0]
	}
	return fallback(posts)
}

// deviation compares the latest post with the baseline of the posts before it
func deviation(latest entity.Post, history []entity.Post, m entity.Metric, name string, threshold float64, now time.Time) (Insight, bool) {
	v := m.PostValue(latest)
	base := Baseline(history, m, baselineDays, now)
	if v == nil || base == nil {
		return Insight{}, false
	}

	dev := (*v - *base) / *base * 100
	if math.Abs(dev) <= threshold {
		return Insight{}, false
	}
	side := "above"
	if dev < 0 {
		side = "below"
	}
	return Insight{
		Metric: m,
		Message: fmt.Sprintf("%q had a %s of %.1f%%, %.0f%% %s your %d-day average of %.1f%%",
			latest.Title, name, *v, math.Abs(dev), side, baselineDays, *base),
		Priority: math.Abs(dev),
	}, true
}

// strongTrend looks at the open rate of the last seven posts
func strongTrend(sorted []entity.Post) (Insight, bool) {
	series := PostSeries(sorted, entity.MetricOpenRate)
	if len(series) > recentPoints {
		series = series[len(series)-recentPoints:]
	}
	tr := Trend(series)
	if tr.Slope == nil || tr.Strength != StrengthStrong || tr.Direction == DirectionNeutral {
		return Insight{}, false
	}
	return Insight{
		Kind:     KindStrongTrend,
		Metric:   entity.MetricOpenRate,
		Message:  fmt.Sprintf("Open rate is trending %s strongly across the last %d editions (%+.1f%% per edition)", tr.Direction, tr.Points, *tr.Slope),
		Priority: trendPriority,
	}, true
}

func bestThisMonth(sorted []entity.Post, now time.Time) (Insight, bool) {
	start := entity.MonthStart(now)
	var month []entity.Post
	for _, p := range sorted {
		if !p.Date.Before(start) && !p.Date.After(now) {
			month = append(month, p)
		}
	}
	if len(month) < 2 {
		return Insight{}, false
	}
	ranked := Rank(month, entity.MetricCTR, OrderDesc)
	if len(ranked) == 0 {
		return Insight{}, false
	}
	best := ranked[0]
	return Insight{
		Kind:     KindBestPerformer,
		Metric:   entity.MetricCTR,
		Message:  fmt.Sprintf("%q is your best performer this month with a %.1f%% click-through rate", best.Post.Title, best.Value),
		Priority: bestPerformerPriority,
	}, true
}

func fallback(posts []entity.Post) Insight {
	if len(posts) == 0 {
		return Insight{Kind: KindNeutral, Message: "No editions imported yet"}
	}
	first, last := posts[0].Date, posts[0].Date
	for _, p := range posts[1:] {
		if p.Date.Before(first) {
			first = p.Date
		}
		if p.Date.After(last) {
			last = p.Date
		}
	}
	noun := "editions"
	if len(posts) == 1 {
		noun = "edition"
	}
	return Insight{
		Kind:    KindNeutral,
		Message: fmt.Sprintf("Tracking %d %s from %s to %s", len(posts), noun, first.Format("Jan 2, 2006"), last.Format("Jan 2, 2006")),
	}
}
