package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

// BucketPosts groups posts into day, week or month buckets sorted by start.
// Weeks follow ISO-8601 (Monday start, week 1 contains January 4th). Each
// bucket carries the weighted aggregate of its own posts.
func BucketPosts(posts []entity.Post, g entity.Granularity) ([]entity.Bucket, error) {
	if !g.Valid() {
		return nil, entity.ErrInvalidGranularity
	}

	byKey := make(map[string]*entity.Bucket)
	for _, p := range posts {
		start, key := periodOf(p.Date, g)
		b, ok := byKey[key]
		if !ok {
			b = &entity.Bucket{Key: key, Start: start}
			byKey[key] = b
		}
		b.Posts = append(b.Posts, p)
	}

	buckets := make([]entity.Bucket, 0, len(byKey))
	for _, b := range byKey {
		sort.SliceStable(b.Posts, func(i, j int) bool {
			return b.Posts[i].Date.Before(b.Posts[j].Date)
		})
		b.Aggregate = Aggregate(b.Posts)
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})

	spansYears := len(buckets) > 0 && buckets[0].Start.Year() != buckets[len(buckets)-1].Start.Year()
	for i := range buckets {
		buckets[i].Label = label(buckets[i].Start, g, spansYears)
	}
	return buckets, nil
}

// Sparkline returns one weighted metric value per bucket, nil where a bucket has no data
func Sparkline(posts []entity.Post, g entity.Granularity, m entity.Metric) ([]*float64, error) {
	buckets, err := BucketPosts(posts, g)
	if err != nil {
		return nil, err
	}
	out := make([]*float64, len(buckets))
	for i, b := range buckets {
		out[i] = m.AggregateValue(b.Aggregate)
	}
	return out, nil
}

// SupportsWeekly reports whether a weekly view carries more information than a
// monthly one: the post count must clearly exceed one post per month spanned.
func SupportsWeekly(posts []entity.Post) bool {
	if len(posts) < 4 {
		return false
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
	first, last = first.UTC(), last.UTC()
	months := (last.Year()-first.Year())*12 + int(last.Month()) - int(first.Month()) + 1
	return float64(len(posts)) > 1.5*float64(months)
}

// GrowthPeriod is one month of subscriber flow keyed for charting
type GrowthPeriod struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	entity.GrowthBucket
}

// BucketGrowth merges growth rows that fall in the same month and keys them like post month buckets
func BucketGrowth(growth []entity.GrowthBucket) []GrowthPeriod {
	byKey := make(map[string]*GrowthPeriod)
	for _, g := range growth {
		start, key := periodOf(g.Date, entity.GranularityMonth)
		gp, ok := byKey[key]
		if !ok {
			gp = &GrowthPeriod{Key: key, GrowthBucket: entity.GrowthBucket{Date: start}}
			byKey[key] = gp
		}
		gp.Subscribed += g.Subscribed
		gp.Unsubscribed += g.Unsubscribed
		gp.Net += g.Net
	}

	out := make([]GrowthPeriod, 0, len(byKey))
	for _, gp := range byKey {
		out = append(out, *gp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	spansYears := len(out) > 0 && out[0].Date.Year() != out[len(out)-1].Date.Year()
	for i := range out {
		out[i].Label = label(out[i].Date, entity.GranularityMonth, spansYears)
	}
	return out
}

// periodOf returns the UTC start and sortable key of the period containing t
func periodOf(t time.Time, g entity.Granularity) (time.Time, string) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	switch g {
	case entity.GranularityWeek:
		year, week := day.ISOWeek()
		offset := (int(day.Weekday()) + 6) % 7 // days since Monday
		return day.AddDate(0, 0, -offset), fmt.Sprintf("%04d-W%02d", year, week)
	case entity.GranularityMonth:
		start := entity.MonthStart(day)
		return start, start.Format("2006-01")
	default:
		return day, day.Format("2006-01-02")
	}
}

func label(start time.Time, g entity.Granularity, spansYears bool) string {
	if g == entity.GranularityMonth {
		if spansYears {
			return start.Format("Jan 2006")
		}
		return start.Format("Jan")
	}
	return start.Format("Jan 2")
}
