package insight

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func floats(vs ...float64) []*float64 {
	out := make([]*float64, len(vs))
	for i := range vs {
		out[i] = entity.Float(vs[i])
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBaseline(t *testing.T) {
	t.Parallel()

	now := day(2024, 3, 31)
	posts := []entity.Post{
		{Date: day(2024, 3, 20), OpenRate: entity.Float(40)},
		{Date: day(2024, 3, 25), OpenRate: entity.Float(60)},
		{Date: day(2024, 3, 26), OpenRate: entity.Float(0)},
		{Date: day(2024, 3, 27)},
		{Date: day(2024, 1, 1), OpenRate: entity.Float(99)},
	}

	got := Baseline(posts, entity.MetricOpenRate, 30, now)
	if got == nil || !almostEqual(*got, 50) {
		t.Errorf("Baseline(30) = %v, want 50", got)
	}
	if got := Baseline(posts, entity.MetricOpenRate, 90, now); got == nil || !almostEqual(*got, (40+60+99)/3.0) {
		t.Errorf("Baseline(90) = %v", got)
	}
	if got := Baseline(posts, entity.MetricOpenRate, 7, day(2024, 6, 1)); got != nil {
		t.Errorf("Baseline with no qualifying posts = %v, want nil", *got)
	}
}

func TestTrend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		values    []*float64
		slope     *float64
		direction Direction
		strength  Strength
	}{
		{"strong rise", floats(10, 11, 12, 13, 14), entity.Float(100.0 / 12), DirectionUp, StrengthStrong},
		{"strong fall", floats(14, 13, 12, 11, 10), entity.Float(-100.0 / 12), DirectionDown, StrengthStrong},
		{"below threshold", floats(100, 101), entity.Float(100.0 / 100.5), DirectionNeutral, StrengthWeak},
		{"weak rise", floats(100, 102, 104), entity.Float(200.0 / 102), DirectionUp, StrengthWeak},
		{"moderate rise", floats(100, 103, 106), entity.Float(300.0 / 103), DirectionUp, StrengthModerate},
		{"gaps are skipped", []*float64{entity.Float(10), nil, entity.Float(14)}, entity.Float(2.0 / 12 * 100), DirectionUp, StrengthStrong},
		{"single value", floats(5), nil, DirectionNeutral, StrengthWeak},
		{"zero mean", floats(-1, 1), nil, DirectionNeutral, StrengthWeak},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Trend(tt.values)
			switch {
			case tt.slope == nil && got.Slope != nil:
				t.Errorf("Slope = %v, want nil", *got.Slope)
			case tt.slope != nil && (got.Slope == nil || !almostEqual(*got.Slope, *tt.slope)):
				t.Errorf("Slope = %v, want %v", got.Slope, *tt.slope)
			}
			if got.Direction != tt.direction {
				t.Errorf("Direction = %q, want %q", got.Direction, tt.direction)
			}
			if got.Strength != tt.strength {
				t.Errorf("Strength = %q, want %q", got.Strength, tt.strength)
			}
		})
	}
}

func TestAcceleration(t *testing.T) {
	t.Parallel()

	t.Run("accelerating", func(t *testing.T) {
		t.Parallel()
		var vs []float64
		for i := 0; i < 23; i++ {
			vs = append(vs, 10)
		}
		for i := 0; i < 7; i++ {
			vs = append(vs, float64(10+i))
		}
		got := Acceleration(floats(vs...))
		if got.Change != ChangeAccelerating || got.Value == nil || !almostEqual(*got.Value, 100.0/13) {
			t.Errorf("Acceleration() = %+v", got)
		}
	})

	t.Run("decelerating", func(t *testing.T) {
		t.Parallel()
		var vs []float64
		for i := 1; i <= 23; i++ {
			vs = append(vs, float64(i))
		}
		for i := 0; i < 7; i++ {
			vs = append(vs, 23)
		}
		got := Acceleration(floats(vs...))
		if got.Change != ChangeDecelerating {
			t.Errorf("Change = %q, want decelerating", got.Change)
		}
	})

	t.Run("only older points beyond thirty are ignored", func(t *testing.T) {
		t.Parallel()
		vs := []float64{1000, 1, 5000}
		for i := 0; i < 30; i++ {
			vs = append(vs, 10)
		}
		got := Acceleration(floats(vs...))
		if got.Change != ChangeSteady || got.Value == nil || *got.Value != 0 {
			t.Errorf("Acceleration() = %+v", got)
		}
	})

	t.Run("too short", func(t *testing.T) {
		t.Parallel()
		got := Acceleration(floats(1, 2, 3, 4, 5, 6, 7))
		if got.Change != ChangeSteady || got.Value != nil {
			t.Errorf("Acceleration() = %+v", got)
		}
	})
}

func TestAnomalies(t *testing.T) {
	t.Parallel()

	build := func(values ...int64) []entity.Post {
		posts := make([]entity.Post, len(values))
		for i, v := range values {
			posts[i] = entity.Post{Date: day(2024, 1, 1).AddDate(0, 0, i), Sent: v}
		}
		return posts
	}

	high := Anomalies(build(10, 10, 10, 10, 10, 10, 10, 10, 10, 40), entity.MetricSent, 0)
	if len(high) != 1 {
		t.Fatalf("got %d anomalies, want 1", len(high))
	}
	if high[0].Kind != AnomalyHigh || !almostEqual(high[0].ZScore, 3) {
		t.Errorf("anomaly = %+v", high[0])
	}
	if high[0].Deviation == nil || !almostEqual(*high[0].Deviation, 27.0/13*100) {
		t.Errorf("Deviation = %v", high[0].Deviation)
	}

	low := Anomalies(build(10, 10, 10, 10, 0, 10, 10, 10, 10, 10), entity.MetricSent, DefaultThreshold)
	if len(low) != 1 || low[0].Kind != AnomalyLow || low[0].Value != 0 {
		t.Errorf("low anomalies = %+v", low)
	}

	if got := Anomalies(build(10, 10, 10, 10, 10, 10, 10, 10, 10, 40), entity.MetricSent, 5); len(got) != 0 {
		t.Errorf("threshold 5 flagged %d", len(got))
	}
	if got := Anomalies(build(7, 7, 7), entity.MetricSent, 0); got != nil {
		t.Errorf("constant series flagged %+v", got)
	}
}

func TestRankAndExtremes(t *testing.T) {
	t.Parallel()

	posts := []entity.Post{
		{Title: "a", Date: day(2024, 1, 1), CTR: entity.Float(3)},
		{Title: "b", Date: day(2024, 1, 2), CTR: entity.Float(5)},
		{Title: "c", Date: day(2024, 1, 3)},
		{Title: "d", Date: day(2024, 1, 4), CTR: entity.Float(1)},
		{Title: "e", Date: day(2024, 1, 5), CTR: entity.Float(3)},
	}

	desc := Rank(posts, entity.MetricCTR, OrderDesc)
	var titles []string
	for i, r := range desc {
		titles = append(titles, r.Post.Title)
		if r.Rank != i+1 {
			t.Errorf("rank %d = %d", i, r.Rank)
		}
	}
	if got := strings.Join(titles, ""); got != "baed" {
		t.Errorf("descending order = %s, want baed", got)
	}

	asc := Rank(posts, entity.MetricCTR, OrderAsc)
	if asc[0].Post.Title != "d" || asc[len(asc)-1].Post.Title != "b" {
		t.Errorf("ascending = %+v", asc)
	}

	ex := Extremes(posts, entity.MetricCTR, 1)
	if len(ex.Top) != 1 || ex.Top[0].Post.Title != "b" || len(ex.Bottom) != 1 || ex.Bottom[0].Post.Title != "d" {
		t.Errorf("Extremes() = %+v", ex)
	}
	if all := Extremes(posts, entity.MetricCTR, 10); len(all.Top) != 4 {
		t.Errorf("k beyond length returned %d", len(all.Top))
	}
}

func TestPrimary(t *testing.T) {
	t.Parallel()

	t.Run("click-through deviation wins", func(t *testing.T) {
		t.Parallel()

		now := day(2024, 3, 31)
		var posts []entity.Post
		for i := 0; i < 4; i++ {
			posts = append(posts, entity.Post{
				Title:    "Regular",
				Date:     day(2024, 3, 1+5*i),
				CTR:      entity.Float(4),
				OpenRate: entity.Float(40),
			})
		}
		posts = append(posts, entity.Post{
			Title:    "Big one",
			Date:     day(2024, 3, 25),
			CTR:      entity.Float(6),
			OpenRate: entity.Float(40),
		})

		got := Primary(posts, now)
		if got.Kind != KindCTRDeviation || !almostEqual(got.Priority, 50) {
			t.Fatalf("Primary() = %+v", got)
		}
		if !strings.Contains(got.Message, "Big one") || !strings.Contains(got.Message, "above") {
			t.Errorf("Message = %q", got.Message)
		}

		all := Candidates(posts, now)
		if len(all) != 2 || all[1].Kind != KindBestPerformer {
			t.Errorf("Candidates() = %+v", all)
		}
	})

	t.Run("strong trend", func(t *testing.T) {
		t.Parallel()

		var posts []entity.Post
		for i := 0; i < 7; i++ {
			posts = append(posts, entity.Post{
				Date:     day(2024, 1, 1).AddDate(0, 0, 7*i),
				OpenRate: entity.Float(float64(20 + 2*i)),
			})
		}
		got := Primary(posts, day(2024, 4, 1))
		if got.Kind != KindStrongTrend || got.Priority != trendPriority {
			t.Fatalf("Primary() = %+v", got)
		}
		if !strings.Contains(got.Message, "up") {
			t.Errorf("Message = %q", got.Message)
		}
	})

	t.Run("neutral fallback", func(t *testing.T) {
		t.Parallel()

		posts := []entity.Post{{Date: day(2024, 1, 20)}, {Date: day(2024, 1, 5)}}
		got := Primary(posts, day(2024, 3, 1))
		want := "Tracking 2 editions from Jan 5, 2024 to Jan 20, 2024"
		if got.Kind != KindNeutral || got.Message != want {
			t.Errorf("Primary() = %+v", got)
		}

		if empty := Primary(nil, day(2024, 3, 1)); empty.Kind != KindNeutral {
			t.Errorf("Primary(nil) = %+v", empty)
		}
	})
}

func TestSeries(t *testing.T) {
	t.Parallel()

	posts := []entity.Post{
		{Date: day(2024, 1, 3), Delivered: 100, UniqueOpens: 50},
		{Date: day(2024, 2, 3), Delivered: 100, UniqueOpens: 20},
	}
	got, err := Series(posts, entity.MetricOpenRate, entity.GranularityMonth)
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	if len(got) != 2 || *got[0] != 50 || *got[1] != 20 {
		t.Errorf("Series() = %v", got)
	}

	ps := PostSeries([]entity.Post{posts[1], posts[0]}, entity.MetricOpenRate)
	if *ps[0] != 50 {
		t.Errorf("PostSeries not chronological: %v", *ps[0])
	}
}
