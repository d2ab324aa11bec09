package entity

import "time"

// AggregateResult represents summary statistics over a collection of posts.
// Rates are ratios of summed counts, never means of per-post rates.
type AggregateResult struct {
	Sent           int64 `json:"sent"`
	Delivered      int64 `json:"delivered"`
	TotalOpens     int64 `json:"total_opens"`
	UniqueOpens    int64 `json:"unique_opens"`
	UniqueClicks   int64 `json:"unique_clicks"`
	VerifiedClicks int64 `json:"verified_clicks"`
	Unsubscribed   int64 `json:"unsubscribed"`
	Count          int   `json:"count"`

	OpenRate        *float64 `json:"open_rate"`        // uniqueOpens / delivered
	CTR             *float64 `json:"ctr"`              // uniqueClicks / uniqueOpens
	VerifiedCTR     *float64 `json:"verified_ctr"`     // verifiedClicks / uniqueOpens
	DeliveryRate    *float64 `json:"delivery_rate"`    // delivered / sent
	UnsubscribeRate *float64 `json:"unsubscribe_rate"` // unsubscribed / delivered

	AvgUniqueClicks   *float64 `json:"avg_unique_clicks"`
	AvgVerifiedClicks *float64 `json:"avg_verified_clicks"`
}

// Granularity is the width of a period bucket
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// Valid reports whether g is a known granularity
func (g Granularity) Valid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return true
	default:
		return false
	}
}

// Bucket is a time-windowed group of posts with its own weighted aggregate
type Bucket struct {
	Key       string          `json:"key"`   // Sortable, e.g. 2024-W01
	Label     string          `json:"label"` // Display, e.g. Jan 1
	Start     time.Time       `json:"start"`
	Posts     []Post          `json:"posts"`
	Aggregate AggregateResult `json:"aggregate"`
}
