// Package insight derives baselines, trends, anomalies, rankings and a
// headline insight from canonical posts.
package insight

import (
	"math"
	"sort"
	"time"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/metrics"
)

// Direction of a trend
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNeutral Direction = "neutral"
)

// Strength of a trend
type Strength string

const (
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
)

// Change classifies an acceleration
type Change string

const (
	ChangeAccelerating Change = "accelerating"
	ChangeDecelerating Change = "decelerating"
	ChangeSteady       Change = "steady"
)

// Classification thresholds in percent per step
const (
	trendThreshold        = 1.0
	moderateThreshold     = 2.0
	strongThreshold       = 5.0
	accelerationThreshold = 1.0

	recentPoints = 7
	priorPoints  = 30
)

// TrendResult is a least-squares slope normalized by the series mean
type TrendResult struct {
	Slope     *float64  `json:"slope"` // Percent of the mean per step
	Direction Direction `json:"direction"`
	Strength  Strength  `json:"strength"`
	Points    int       `json:"points"`
}

// AccelerationResult compares the recent trend with the one before it
type AccelerationResult struct {
	Value  *float64 `json:"value"` // Recent slope minus prior slope
	Change Change   `json:"change"`
}

// Baseline averages a metric over posts dated within the trailing days
// before now. Missing and zero values are ignored; nil when nothing qualifies.
func Baseline(posts []entity.Post, m entity.Metric, days int, now time.Time) *float64 {
	var sum float64
	var n int
	for _, p := range metrics.LastDays(days, now).Apply(posts) {
		v := m.PostValue(p)
		if v == nil || *v == 0 {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return nil
	}
	return entity.Float(sum / float64(n))
}

// PostSeries returns the metric for each post in chronological order
func PostSeries(posts []entity.Post, m entity.Metric) []*float64 {
	sorted := make([]entity.Post, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := make([]*float64, len(sorted))
	for i, p := range sorted {
		out[i] = m.PostValue(p)
	}
	return out
}

// Series returns the weighted metric per period bucket
func Series(posts []entity.Post, m entity.Metric, g entity.Granularity) ([]*float64, error) {
	return metrics.Sparkline(posts, g, m)
}

// Trend fits an ordinary least-squares line through the non-nil values,
// using their positions as x, and expresses the slope as a percentage of
// the mean. Fewer than two values or a zero mean give a nil slope.
func Trend(values []*float64) TrendResult {
	res := TrendResult{Direction: DirectionNeutral, Strength: StrengthWeak}
	slope, n := normalizedSlope(values)
	res.Points = n
	if slope == nil {
		return res
	}

	res.Slope = slope
	abs := math.Abs(*slope)
	switch {
	case abs < trendThreshold:
	case *slope > 0:
		res.Direction = DirectionUp
	default:
		res.Direction = DirectionDown
	}
	switch {
	case abs >= strongThreshold:
		res.Strength = StrengthStrong
	case abs >= moderateThreshold:
		res.Strength = StrengthModerate
	}
	return res
}

// Acceleration subtracts the trend of positions -30..-7 from the trend of the
// last seven positions.
func Acceleration(values []*float64) AccelerationResult {
	res := AccelerationResult{Change: ChangeSteady}
	if len(values) <= recentPoints {
		return res
	}

	split := len(values) - recentPoints
	from := len(values) - priorPoints
	if from < 0 {
		from = 0
	}
	recent, _ := normalizedSlope(values[split:])
	prior, _ := normalizedSlope(values[from:split])
	if recent == nil || prior == nil {
		return res
	}

	v := *recent - *prior
	res.Value = &v
	switch {
	case v > accelerationThreshold:
		res.Change = ChangeAccelerating
	case v < -accelerationThreshold:
		res.Change = ChangeDecelerating
	}
	return res
}

func normalizedSlope(values []*float64) (*float64, int) {
	var xs, ys []float64
	for i, v := range values {
		if v == nil {
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, *v)
	}
	n := len(ys)
	if n < 2 {
		return nil, n
	}

	meanX, meanY := mean(xs), mean(ys)
	var num, den float64
	for i := range xs {
		dx := xs[i] - meanX
		num += dx * (ys[i] - meanY)
		den += dx * dx
	}
	if den == 0 || meanY == 0 {
		return nil, n
	}
	return entity.Float(num / den / meanY * 100), n
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
