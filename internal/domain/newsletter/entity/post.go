package entity

import (
	"time"
)

// Post represents one sent newsletter edition (campaign)
type Post struct {
	ID    string    `json:"id,omitempty"` // Upstream post ID, empty for file imports
	Date  time.Time `json:"date"`
	Title string    `json:"title"`

	// Counts, zero when the source did not report them
	Sent           int64 `json:"sent"`
	Delivered      int64 `json:"delivered"`
	TotalOpens     int64 `json:"total_opens"`
	UniqueOpens    int64 `json:"unique_opens"`
	UniqueClicks   int64 `json:"unique_clicks"`
	VerifiedClicks int64 `json:"verified_clicks"`
	Unsubscribed   int64 `json:"unsubscribed"`

	// Rates on a 0-100 scale, nil when the source did not report them
	OpenRate        *float64 `json:"open_rate"`
	CTR             *float64 `json:"ctr"`
	VerifiedCTR     *float64 `json:"verified_ctr"`
	DeliveryRate    *float64 `json:"delivery_rate"`
	UnsubscribeRate *float64 `json:"unsubscribe_rate"`

	ContentTags *string `json:"content_tags"`

	// Estimated is set when counts are publication averages rather than per-post stats
	Estimated bool `json:"estimated,omitempty"`
}

// Timestamp returns the publication date
func (p Post) Timestamp() time.Time {
	return p.Date
}

// AudienceSnapshot is one reading of the active subscriber count
type AudienceSnapshot struct {
	Date              time.Time `json:"date"`
	ActiveSubscribers int64     `json:"active_subscribers"`
}

// Timestamp returns the snapshot date
func (a AudienceSnapshot) Timestamp() time.Time {
	return a.Date
}

// GrowthBucket is one calendar month of subscriber flow
type GrowthBucket struct {
	Date         time.Time `json:"date"` // First day of the month, UTC
	Subscribed   int64     `json:"subscribed"`
	Unsubscribed int64     `json:"unsubscribed"`
	Net          int64     `json:"net"`
}

// Timestamp returns the month start
func (g GrowthBucket) Timestamp() time.Time {
	return g.Date
}

// LatestAudience returns the snapshot with the greatest date, or nil for an empty series
func LatestAudience(snapshots []AudienceSnapshot) *AudienceSnapshot {
	var latest *AudienceSnapshot
	for i := range snapshots {
		if latest == nil || snapshots[i].Date.After(latest.Date) {
			latest = &snapshots[i]
		}
	}
	return latest
}

// MonthStart returns midnight UTC of the first day of t's month
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
