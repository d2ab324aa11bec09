package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/insight"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/metrics"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/policy"
	"github.com/newsletterlab/pulse/internal/httpx/response"
)

// maxUploadSize caps import bodies
const maxUploadSize = 32 << 20

// NewsletterPolicy defines the interface for newsletter operations
type NewsletterPolicy interface {
	ImportBulkText(ctx context.Context, in policy.ImportInput) (*policy.ImportOutput, error)
	ImportWorkbook(ctx context.Context, in policy.ImportInput) (*policy.ImportOutput, error)
	Sync(ctx context.Context, in policy.SyncInput) (*policy.ImportOutput, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, newsletterID string) error

	Dataset(ctx context.Context, s policy.Session) (*entity.Dataset, error)
	Summary(ctx context.Context, s policy.Session) (*policy.SummaryOutput, error)
	Buckets(ctx context.Context, s policy.Session, g entity.Granularity) ([]entity.Bucket, error)
	Trend(ctx context.Context, s policy.Session, m entity.Metric, g entity.Granularity) (*policy.TrendOutput, error)
	Baseline(ctx context.Context, s policy.Session, m entity.Metric, days int) (*policy.BaselineOutput, error)
	Delta(ctx context.Context, s policy.Session, m entity.Metric) (*metrics.DeltaResult, error)
	Anomalies(ctx context.Context, s policy.Session, m entity.Metric, threshold float64) ([]insight.Anomaly, error)
	Rankings(ctx context.Context, s policy.Session, m entity.Metric, order insight.Order, limit int) (*policy.RankingsOutput, error)
	Insight(ctx context.Context, s policy.Session) (*policy.InsightOutput, error)
}

// NewsletterHandler handles HTTP requests for newsletter imports and analytics
type NewsletterHandler struct {
	policy NewsletterPolicy
	now    func() time.Time
}

// NewNewsletterHandler creates a new newsletter handler
func NewNewsletterHandler(p NewsletterPolicy) *NewsletterHandler {
	return &NewsletterHandler{policy: p, now: time.Now}
}

// RegisterRoutes registers newsletter routes
func (h *NewsletterHandler) RegisterRoutes(r chi.Router) {
	r.Route("/newsletters", func(r chi.Router) {
		r.Get("/", h.List())

		r.Route("/{newsletterId}", func(r chi.Router) {
			// Ingestion
			r.Post("/imports/csv", h.Import(h.policy.ImportBulkText))
			r.Post("/imports/workbook", h.Import(h.policy.ImportWorkbook))
			r.Post("/sync", h.Sync())
			r.Delete("/", h.Delete())

			// Analytics
			r.Get("/dataset", h.Dataset())
			r.Get("/summary", h.Summary())
			r.Get("/buckets", h.Buckets())
			r.Get("/trend", h.Trend())
			r.Get("/baseline", h.Baseline())
			r.Get("/delta", h.Delta())
			r.Get("/anomalies", h.Anomalies())
			r.Get("/rankings", h.Rankings())
			r.Get("/insight", h.Insight())
		})
	})
}

// List handles GET /newsletters
func (h *NewsletterHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := h.policy.List(r.Context())
		if err != nil {
			handleDomainError(w, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		response.OK(w, map[string]interface{}{"newsletters": ids})
	}
}

// Import handles POST /newsletters/{newsletterId}/imports/{csv|workbook}.
// The file is either the "file" field of a multipart form or the raw body.
func (h *NewsletterHandler) Import(run func(context.Context, policy.ImportInput) (*policy.ImportOutput, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

		in, err := readUpload(r)
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		in.NewsletterID = chi.URLParam(r, "newsletterId")

		out, err := run(r.Context(), in)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.Created(w, out)
	}
}

// SyncRequest represents the optional body of a sync request
type SyncRequest struct {
	PublicationID string `json:"publication_id,omitempty"`
	RecentStats   *int   `json:"recent_stats,omitempty"`
}

// Sync handles POST /newsletters/{newsletterId}/sync
func (h *NewsletterHandler) Sync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SyncRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				response.BadRequest(w, "invalid JSON")
				return
			}
		}
		if req.RecentStats != nil && *req.RecentStats < 0 {
			response.BadRequest(w, "recent_stats must be non-negative")
			return
		}

		out, err := h.policy.Sync(r.Context(), policy.SyncInput{
			NewsletterID:  chi.URLParam(r, "newsletterId"),
			PublicationID: req.PublicationID,
			RecentStats:   req.RecentStats,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, out)
	}
}

// Delete handles DELETE /newsletters/{newsletterId}
func (h *NewsletterHandler) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.policy.Delete(r.Context(), chi.URLParam(r, "newsletterId")); err != nil {
			handleDomainError(w, err)
			return
		}
		response.NoContent(w)
	}
}

// Dataset handles GET /newsletters/{newsletterId}/dataset
func (h *NewsletterHandler) Dataset() http.HandlerFunc {
	return h.query(func(r *http.Request, s policy.Session) (interface{}, error) {
		return h.policy.Dataset(r.Context(), s)
	})
}

// Summary handles GET /newsletters/{newsletterId}/summary
func (h *NewsletterHandler) Summary() http.HandlerFunc {
	return h.query(func(r *http.Request, s policy.Session) (interface{}, error) {
		return h.policy.Summary(r.Context(), s)
	})
}

// Buckets handles GET /newsletters/{newsletterId}/buckets?granularity=
func (h *NewsletterHandler) Buckets() http.HandlerFunc {
	return h.query(func(r *http.Request, s policy.Session) (interface{}, error) {
		g := entity.Granularity(r.URL.Query().Get("granularity"))
		if g == "" {
			g = entity.GranularityMonth
		}
		buckets, err := h.policy.Buckets(r.Context(), s, g)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"granularity": g, "buckets": buckets}, nil
	})
}

// Trend handles GET /newsletters/{newsletterId}/trend?metric=&granularity=
func (h *NewsletterHandler) Trend() http.HandlerFunc {
	return h.query(func(r *http.Request, s policy.Session) (interface{}, error) {
		m, err := metricParam(r, entity.MetricOpenRate)
		if err != nil {
			return nil, err
		}
		return h.policy.Trend(r.Context(), s, m, entity.Granularity(r.URL.Query().Get("granularity")))
	})
}

// Baseline handles GET /newsletters/{newsletterId}/baseline?metric=&days=
func (h *NewsletterHandler) Baseline() http.HandlerFunc {
	return h.query(func(r *http.Request, s policy.Session) (interface{}, error) {
		m, err := metricParam(r, entity.MetricOpenRate)
		if err != nil {
			return nil, err
		}
		days, err := intParam(r, "days", 30)
		if err != nil || days <= 0 {
			return nil, badRequest("days must be a positive integer")
		}
		return h.policy.Baseline(r.Context(), s, m, days)
	})
}

// Delta handles GET /newsletters/{newsletterId}/delta?metric=
func (h *NewsletterHandler) Delta() http.HandlerFunc {
	return h.query(func(r *http.Request, s policy.Session) (interface{}, error) {
		m, err := metricParam(r, entity.MetricOpenRate)
		if err != nil {
			return nil, err
		}
		return h.policy.Delta(r.Context(), s, m)
	})
}

// Anomalies handles GET /newsletters/{newsletterId}/anomalies?metric=&threshold=
func (h *NewsletterHandler) Anomalies() http.HandlerFunc {
	return h.query(func(r *http.Request, s policy.Session) (interface{}, error) {
		m, err := metricParam(r, entity.MetricOpenRate)
		if err != nil {
			return nil, err
		}
		threshold := insight.DefaultThreshold
		if v := r.URL.Query().Get("threshold"); v != "" {
			threshold, err = strconv.ParseFloat(v, 64)
			if err != nil || threshold <= 0 {
				return nil, badRequest("threshold must be a positive number")
			}
		}
		anomalies, err := h.policy.Anomalies(r.Context(), s, m, threshold)
		if err != nil {
			return nil, err
		}
		if anomalies == nil {
			anomalies = []insight.Anomaly{}
		}
		return map[string]interface{}{"metric": m, "threshold": threshold, "anomalies": anomalies}, nil
	})
}

// Rankings handles GET /newsletters/{newsletterId}/rankings?metric=&order=&limit=
func (h *NewsletterHandler) Rankings() http.HandlerFunc {
	return h.query(func(r *http.Request, s policy.Session) (interface{}, error) {
		m, err := metricParam(r, entity.MetricCTR)
		if err != nil {
			return nil, err
		}
		order := insight.Order(r.URL.Query().Get("order"))
		switch order {
		case "":
			order = insight.OrderDesc
		case insight.OrderAsc, insight.OrderDesc:
		default:
			return nil, badRequest("order must be asc or desc")
		}
		limit, err := intParam(r, "limit", 0)
		if err != nil || limit < 0 {
			return nil, badRequest("limit must be a non-negative integer")
		}
		return h.policy.Rankings(r.Context(), s, m, order, limit)
	})
}

// Insight handles GET /newsletters/{newsletterId}/insight
func (h *NewsletterHandler) Insight() http.HandlerFunc {
	return h.query(func(r *http.Request, s policy.Session) (interface{}, error) {
		return h.policy.Insight(r.Context(), s)
	})
}

// query parses the session from the request and renders the result of fn
func (h *NewsletterHandler) query(fn func(r *http.Request, s policy.Session) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.session(r)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		out, err := fn(r, s)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		response.OK(w, out)
	}
}

// session builds the analytics session from the path and the start, end, days and snap parameters
func (h *NewsletterHandler) session(r *http.Request) (policy.Session, error) {
	q := r.URL.Query()
	s := policy.Session{
		NewsletterID: chi.URLParam(r, "newsletterId"),
		Now:          h.now().UTC(),
	}

	if v := q.Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return s, badRequest("days must be a positive integer")
		}
		s.Window = metrics.LastDays(days, s.Now)
	}
	if v := q.Get("start"); v != "" {
		t, err := parseTime(v, false)
		if err != nil {
			return s, badRequest("invalid start: use RFC3339 or YYYY-MM-DD")
		}
		s.Window.Start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := parseTime(v, true)
		if err != nil {
			return s, badRequest("invalid end: use RFC3339 or YYYY-MM-DD")
		}
		s.Window.End = t
	}
	if v := q.Get("snap"); v != "" {
		snap, err := strconv.ParseBool(v)
		if err != nil {
			return s, badRequest("snap must be a boolean")
		}
		s.Window.SnapToMonth = snap
	}
	return s, nil
}

// parseTime accepts RFC3339 or a bare date. A bare end date covers the whole day.
func parseTime(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func metricParam(r *http.Request, def entity.Metric) (entity.Metric, error) {
	v := r.URL.Query().Get("metric")
	if v == "" {
		return def, nil
	}
	return entity.ParseMetric(v)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func readUpload(r *http.Request) (policy.ImportInput, error) {
	var in policy.ImportInput

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return in, fmt.Errorf("file field is required")
		}
		defer file.Close()

		body, err := io.ReadAll(file)
		if err != nil {
			return in, fmt.Errorf("reading upload: %w", err)
		}
		in.Body = body
		in.Filename = header.Filename
		in.ContentType = header.Header.Get("Content-Type")
		return in, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return in, fmt.Errorf("reading body: %w", err)
	}
	in.Body = body
	in.ContentType = r.Header.Get("Content-Type")
	in.Filename = r.URL.Query().Get("filename")
	return in, nil
}
