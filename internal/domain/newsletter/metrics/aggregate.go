// Package metrics reduces canonical posts into aggregates, period buckets
// and period-over-period deltas. Every function here is pure.
package metrics

import (
	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

// Aggregate sums counts over posts and derives rates from the sums, so each
// post contributes in proportion to its volume. An empty input yields zero
// counts and nil rates.
func Aggregate(posts []entity.Post) entity.AggregateResult {
	var a entity.AggregateResult
	for _, p := range posts {
		a.Sent += p.Sent
		a.Delivered += p.Delivered
		a.TotalOpens += p.TotalOpens
		a.UniqueOpens += p.UniqueOpens
		a.UniqueClicks += p.UniqueClicks
		a.VerifiedClicks += p.VerifiedClicks
		a.Unsubscribed += p.Unsubscribed
	}
	a.Count = len(posts)

	a.OpenRate = entity.Ratio(a.UniqueOpens, a.Delivered)
	a.CTR = entity.Ratio(a.UniqueClicks, a.UniqueOpens)
	a.VerifiedCTR = entity.Ratio(a.VerifiedClicks, a.UniqueOpens)
	a.DeliveryRate = entity.Ratio(a.Delivered, a.Sent)
	a.UnsubscribeRate = entity.Ratio(a.Unsubscribed, a.Delivered)

	if a.Count > 0 {
		a.AvgUniqueClicks = entity.Float(float64(a.UniqueClicks) / float64(a.Count))
		a.AvgVerifiedClicks = entity.Float(float64(a.VerifiedClicks) / float64(a.Count))
	}
	return a
}

// AggregateWindow aggregates the posts inside an optional window
func AggregateWindow(posts []entity.Post, window *Window) entity.AggregateResult {
	if window == nil {
		return Aggregate(posts)
	}
	return Aggregate(window.Apply(posts))
}
