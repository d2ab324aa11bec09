package policy

import (
	"context"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/insight"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/metrics"
)

// Dataset returns the stored dataset with every series limited to the session window
func (p *Policy) Dataset(ctx context.Context, s Session) (*entity.Dataset, error) {
	ds, posts, err := p.load(ctx, s)
	if err != nil {
		return nil, err
	}
	out := *ds
	out.Posts = posts
	out.Growth = metrics.ApplyWindow(s.Window, ds.Growth)
	out.Audience = metrics.ApplyWindow(s.Window, ds.Audience)
	return &out, nil
}

// SummaryOutput is the headline view of a window
type SummaryOutput struct {
	Aggregate      entity.AggregateResult                `json:"aggregate"`
	Deltas         map[entity.Metric]metrics.DeltaResult `json:"deltas"`
	Audience       *entity.AudienceSnapshot              `json:"audience"`
	Growth         []metrics.GrowthPeriod                `json:"growth"`
	SupportsWeekly bool                                  `json:"supports_weekly"`
	Kind           entity.SourceKind                     `json:"kind"`
	Warnings       []entity.Warning                      `json:"warnings"`
}

// Summary aggregates the window and computes a delta for every tracked metric
func (p *Policy) Summary(ctx context.Context, s Session) (*SummaryOutput, error) {
	ds, posts, err := p.load(ctx, s)
	if err != nil {
		return nil, err
	}

	deltas := make(map[entity.Metric]metrics.DeltaResult, len(entity.Metrics))
	for _, m := range entity.Metrics {
		deltas[m] = metrics.Delta(posts, m)
	}

	monthly := s.Window
	monthly.SnapToMonth = true

	return &SummaryOutput{
		Aggregate:      metrics.Aggregate(posts),
		Deltas:         deltas,
		Audience:       entity.LatestAudience(ds.Audience),
		Growth:         metrics.BucketGrowth(metrics.ApplyWindow(monthly, ds.Growth)),
		SupportsWeekly: metrics.SupportsWeekly(posts),
		Kind:           ds.Kind,
		Warnings:       ds.Warnings,
	}, nil
}

// Buckets groups the window's posts by period. Monthly buckets always use the
// month-snapping filter so the first month is complete.
func (p *Policy) Buckets(ctx context.Context, s Session, g entity.Granularity) ([]entity.Bucket, error) {
	if !g.Valid() {
		return nil, entity.ErrInvalidGranularity
	}
	if g == entity.GranularityMonth {
		s.Window.SnapToMonth = true
	}
	_, posts, err := p.load(ctx, s)
	if err != nil {
		return nil, err
	}
	return metrics.BucketPosts(posts, g)
}

// TrendOutput holds a metric series with its trend and acceleration
type TrendOutput struct {
	Metric       entity.Metric              `json:"metric"`
	Granularity  entity.Granularity         `json:"granularity,omitempty"`
	Series       []*float64                 `json:"series"`
	Trend        insight.TrendResult        `json:"trend"`
	Acceleration insight.AccelerationResult `json:"acceleration"`
}

// Trend fits the metric over per-post values, or over period buckets when a granularity is given
func (p *Policy) Trend(ctx context.Context, s Session, m entity.Metric, g entity.Granularity) (*TrendOutput, error) {
	if g != "" && !g.Valid() {
		return nil, entity.ErrInvalidGranularity
	}
	if g == entity.GranularityMonth {
		s.Window.SnapToMonth = true
	}
	_, posts, err := p.load(ctx, s)
	if err != nil {
		return nil, err
	}

	series := insight.PostSeries(posts, m)
	if g != "" {
		if series, err = insight.Series(posts, m, g); err != nil {
			return nil, err
		}
	}
	return &TrendOutput{
		Metric:       m,
		Granularity:  g,
		Series:       series,
		Trend:        insight.Trend(series),
		Acceleration: insight.Acceleration(series),
	}, nil
}

// BaselineOutput is a trailing average of a metric
type BaselineOutput struct {
	Metric entity.Metric `json:"metric"`
	Days   int           `json:"days"`
	Value  *float64      `json:"value"`
}

// Baseline averages the metric over the trailing days ending at the session clock
func (p *Policy) Baseline(ctx context.Context, s Session, m entity.Metric, days int) (*BaselineOutput, error) {
	ds, err := p.svc.Get(ctx, s.NewsletterID)
	if err != nil {
		return nil, err
	}
	return &BaselineOutput{
		Metric: m,
		Days:   days,
		Value:  insight.Baseline(ds.Posts, m, days, s.Now),
	}, nil
}

// Delta compares the second half of the window with the first
func (p *Policy) Delta(ctx context.Context, s Session, m entity.Metric) (*metrics.DeltaResult, error) {
	_, posts, err := p.load(ctx, s)
	if err != nil {
		return nil, err
	}
	d := metrics.Delta(posts, m)
	return &d, nil
}

// Anomalies flags unusual posts in the window
func (p *Policy) Anomalies(ctx context.Context, s Session, m entity.Metric, threshold float64) ([]insight.Anomaly, error) {
	_, posts, err := p.load(ctx, s)
	if err != nil {
		return nil, err
	}
	return insight.Anomalies(posts, m, threshold), nil
}

// RankingsOutput holds a ranking and its extremes
type RankingsOutput struct {
	Metric   entity.Metric          `json:"metric"`
	Ranked   []insight.Ranked       `json:"ranked"`
	Extremes insight.ExtremesResult `json:"extremes"`
}

// Rankings orders the window's posts by the metric. limit caps Ranked and
// sizes the extremes; zero or less returns everything with extremes of three.
func (p *Policy) Rankings(ctx context.Context, s Session, m entity.Metric, order insight.Order, limit int) (*RankingsOutput, error) {
	_, posts, err := p.load(ctx, s)
	if err != nil {
		return nil, err
	}

	ranked := insight.Rank(posts, m, order)
	k := 3
	if limit > 0 {
		k = limit
		if limit < len(ranked) {
			ranked = ranked[:limit]
		}
	}
	return &RankingsOutput{
		Metric:   m,
		Ranked:   ranked,
		Extremes: insight.Extremes(posts, m, k),
	}, nil
}

// InsightOutput is the headline insight with the candidates it beat
type InsightOutput struct {
	Primary    insight.Insight   `json:"primary"`
	Candidates []insight.Insight `json:"candidates"`
}

// Insight selects the highest-priority observation for the window
func (p *Policy) Insight(ctx context.Context, s Session) (*InsightOutput, error) {
	_, posts, err := p.load(ctx, s)
	if err != nil {
		return nil, err
	}
	return &InsightOutput{
		Primary:    insight.Primary(posts, s.Now),
		Candidates: insight.Candidates(posts, s.Now),
	}, nil
}

// load validates the session and returns the dataset with its posts limited to the window
func (p *Policy) load(ctx context.Context, s Session) (*entity.Dataset, []entity.Post, error) {
	if err := s.Window.Validate(); err != nil {
		return nil, nil, err
	}
	ds, err := p.svc.Get(ctx, s.NewsletterID)
	if err != nil {
		return nil, nil, err
	}
	return ds, s.Window.Apply(ds.Posts), nil
}
