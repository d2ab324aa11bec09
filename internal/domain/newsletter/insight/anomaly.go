package insight

import (
	"math"
	"sort"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

// DefaultThreshold is the z-score magnitude above which a post is anomalous
const DefaultThreshold = 1.5

// AnomalyKind says which side of the mean an anomaly falls on
type AnomalyKind string

const (
	AnomalyHigh AnomalyKind = "high"
	AnomalyLow  AnomalyKind = "low"
)

// Anomaly is a post whose metric sits far from the set mean
type Anomaly struct {
	Post      entity.Post `json:"post"`
	Value     float64     `json:"value"`
	ZScore    float64     `json:"z_score"`
	Kind      AnomalyKind `json:"kind"`
	Deviation *float64    `json:"deviation"` // Percent from the mean, nil when the mean is zero
}

// Anomalies flags posts with |z| > threshold against the mean and population
// standard deviation of all posts carrying the metric. A non-positive
// threshold selects DefaultThreshold. Results are ordered by date.
func Anomalies(posts []entity.Post, m entity.Metric, threshold float64) []Anomaly {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	type point struct {
		post  entity.Post
		value float64
	}
	var points []point
	for _, p := range posts {
		if v := m.PostValue(p); v != nil {
			points = append(points, point{post: p, value: *v})
		}
	}
	if len(points) < 2 {
		return nil
	}

	var sum float64
	for _, pt := range points {
		sum += pt.value
	}
	avg := sum / float64(len(points))
	var sq float64
	for _, pt := range points {
		sq += (pt.value - avg) * (pt.value - avg)
	}
	std := math.Sqrt(sq / float64(len(points)))
	if std == 0 {
		return nil
	}

	var out []Anomaly
	for _, pt := range points {
		z := (pt.value - avg) / std
		if math.Abs(z) <= threshold {
			continue
		}
		a := Anomaly{Post: pt.post, Value: pt.value, ZScore: z, Kind: AnomalyHigh}
		if z < 0 {
			a.Kind = AnomalyLow
		}
		if avg != 0 {
			a.Deviation = entity.Float((pt.value - avg) / avg * 100)
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Post.Date.Before(out[j].Post.Date)
	})
	return out
}
