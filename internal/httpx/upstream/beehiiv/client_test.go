package beehiiv

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(WithBaseURL(srv.URL), WithAPIKey("secret"), WithHTTPClient(srv.Client()))
}

func TestClient_ListPosts(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/publications/pub_1/posts" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("limit") != "50" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"post_1","title":"Hello","publish_date":1704067200,"content_tags":["news"]}],"page":2,"limit":50,"total_pages":3,"total_results":101}`))
	})

	out, err := c.ListPosts(context.Background(), ListPostsInput{PublicationID: "pub_1", Page: 2, Limit: 50})
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if out.TotalPages != 3 || len(out.Data) != 1 {
		t.Fatalf("ListPosts() = %+v", out)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := out.Data[0].PublishedAt(); !got.Equal(want) {
		t.Errorf("PublishedAt() = %v, want %v", got, want)
	}
}

func TestClient_GetPost(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/publications/pub_1/posts/post_1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query()["expand[]"]; len(got) != 1 || got[0] != "stats" {
			t.Errorf("expand = %v", got)
		}
		w.Write([]byte(`{"data":{"id":"post_1","stats":{"email":{"recipients":1000,"delivered":990,"unique_opens":450,"open_rate":45.45,"unique_clicks":40,"verified_clicks":30}}}}`))
	})

	post, err := c.GetPost(context.Background(), "pub_1", "post_1")
	if err != nil {
		t.Fatalf("GetPost() error = %v", err)
	}
	if post.Stats == nil || post.Stats.Email == nil {
		t.Fatal("missing stats")
	}
	email := post.Stats.Email
	if email.Delivered != 990 || email.OpenRate == nil || *email.OpenRate != 45.45 || email.ClickRate != nil {
		t.Errorf("email stats = %+v", email)
	}
}

func TestClient_GetPublication(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"pub_1","name":"Weekly","stats":{"active_subscriptions":1200,"total_sent":5000,"average_open_rate":41.2}}}`))
	})

	pub, err := c.GetPublication(context.Background(), "pub_1")
	if err != nil {
		t.Fatalf("GetPublication() error = %v", err)
	}
	if pub.Stats.ActiveSubscriptions != 1200 || *pub.Stats.AverageOpenRate != 41.2 {
		t.Errorf("stats = %+v", pub.Stats)
	}
}

func TestClient_APIError(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":429,"errors":[{"message":"Too many requests","code":"rate_limited"}]}`))
	})

	_, err := c.GetPublication(context.Background(), "pub_1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests || apiErr.Message != "Too many requests" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"data":{}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithRateLimit(0.001, 1))
	if _, err := c.GetPublication(context.Background(), "pub_1"); err != nil {
		t.Fatalf("first call error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.GetPublication(ctx, "pub_1"); err == nil {
		t.Fatal("expected limiter to reject the second call")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1", got)
	}
}

func TestPost_PublishedAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		post Post
		want time.Time
	}{
		{"published", Post{PublishDate: 1704067200}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"draft without date", Post{}, time.Time{}},
		{"negative timestamp", Post{PublishDate: -1}, time.Time{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.post.PublishedAt()
			if !got.Equal(tt.want) || got.IsZero() != tt.want.IsZero() {
				t.Errorf("PublishedAt() = %v, want %v", got, tt.want)
			}
		})
	}
}
