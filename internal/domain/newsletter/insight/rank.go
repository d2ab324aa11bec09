package insight

import (
	"sort"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

// Order of a ranking
type Order string

const (
	OrderDesc Order = "desc"
	OrderAsc  Order = "asc"
)

// Ranked is a post with its 1-based position
type Ranked struct {
	Rank  int         `json:"rank"`
	Value float64     `json:"value"`
	Post  entity.Post `json:"post"`
}

// ExtremesResult holds the best and worst posts by a metric
type ExtremesResult struct {
	Top    []Ranked `json:"top"`
	Bottom []Ranked `json:"bottom"`
}

// Rank sorts posts carrying the metric and numbers them from 1. Ties keep
// chronological order. Any order other than OrderAsc ranks descending.
func Rank(posts []entity.Post, m entity.Metric, order Order) []Ranked {
	sorted := make([]entity.Post, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := make([]Ranked, 0, len(sorted))
	for _, p := range sorted {
		if v := m.PostValue(p); v != nil {
			out = append(out, Ranked{Value: *v, Post: p})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order == OrderAsc {
			return out[i].Value < out[j].Value
		}
		return out[i].Value > out[j].Value
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Extremes returns the top k and bottom k posts by the metric. Bottom is
// ranked ascending, so its first entry is the worst post.
func Extremes(posts []entity.Post, m entity.Metric, k int) ExtremesResult {
	return ExtremesResult{
		Top:    head(Rank(posts, m, OrderDesc), k),
		Bottom: head(Rank(posts, m, OrderAsc), k),
	}
}

func head(r []Ranked, k int) []Ranked {
	if k >= 0 && k < len(r) {
		return r[:k]
	}
	return r
}
