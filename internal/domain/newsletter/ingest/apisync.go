package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/normalize"
)

const (
	defaultPageSize  = 100
	defaultBatchSize = 5
)

// Platform defines the email platform calls the sync adapter needs.
// This interface is defined here (consumer) not in the upstream package (provider).
type Platform interface {
	ListPosts(ctx context.Context, publicationID string, page, limit int) (*RemotePage, error)
	GetPost(ctx context.Context, publicationID, postID string) (*RemotePost, error)
	GetPublication(ctx context.Context, publicationID string) (*RemotePublication, error)
}

// RemotePost is a post as reported by the platform
type RemotePost struct {
	ID          string
	Title       string
	PublishedAt time.Time
	ContentTags []string
	Stats       *RemoteStats // nil in bulk listings
}

// RemoteStats are the per-post email statistics
type RemoteStats struct {
	Recipients     int64
	Delivered      int64
	Opens          int64
	UniqueOpens    int64
	UniqueClicks   int64
	VerifiedClicks int64
	Unsubscribes   int64

	OpenRate          *float64
	ClickRate         *float64
	VerifiedClickRate *float64
}

// RemotePage is one page of the post listing
type RemotePage struct {
	Posts      []RemotePost
	Page       int
	TotalPages int
}

// RemotePublication carries publication-level aggregate statistics
type RemotePublication struct {
	ActiveSubscriptions int64
	TotalSent           int64
	TotalDelivered      int64
	TotalUniqueOpened   int64
	TotalClicked        int64
	AverageOpenRate     *float64
	AverageClickRate    *float64
}

// SyncRequest selects what to fetch
type SyncRequest struct {
	PublicationID string
	RecentStats   int // How many of the most recent posts get per-post stats
}

// SyncerConfig holds configuration for the API sync adapter
type SyncerConfig struct {
	PageSize  int
	BatchSize int // Concurrent detail requests per batch
	Logger    *slog.Logger
	Now       func() time.Time
}

// Syncer is the API sync ingestion adapter
type Syncer struct {
	platform  Platform
	pageSize  int
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// NewSyncer creates a new API sync adapter
func NewSyncer(platform Platform, cfg SyncerConfig) *Syncer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Syncer{
		platform:  platform,
		pageSize:  cfg.PageSize,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With("component", "ingest.syncer"),
		now:       cfg.Now,
	}
}

// Sync lists every post, backfills them with publication averages and then
// fetches per-post stats for the most recent ones in sequential batches.
// A failed detail fetch leaves that post at its averaged values.
func (s *Syncer) Sync(ctx context.Context, req SyncRequest) (*entity.Dataset, error) {
	if req.PublicationID == "" {
		return nil, entity.ErrNoPublicationID
	}

	ds := &entity.Dataset{Kind: entity.SourceAPISync}

	pub, err := s.platform.GetPublication(ctx, req.PublicationID)
	if err != nil {
		s.logger.Warn("publication stats unavailable", "publication_id", req.PublicationID, "error", err)
		ds.Warn(entity.WarningPartialFetch, "publication stats unavailable, posts without detail stats stay empty: %v", err)
		pub = nil
	}

	remote, err := s.listAll(ctx, ds, req.PublicationID)
	if err != nil {
		return nil, err
	}

	// Most recently published first
	sort.SliceStable(remote, func(i, j int) bool {
		return remote[i].PublishedAt.After(remote[j].PublishedAt)
	})

	posts := make([]entity.Post, len(remote))
	byID := make(map[string]int, len(remote))
	for i, rp := range remote {
		posts[i] = averagedPost(rp, pub, len(remote))
		byID[rp.ID] = i
	}

	recent := req.RecentStats
	if recent > len(remote) {
		recent = len(remote)
	}
	if recent < 0 {
		recent = 0
	}

	failed := 0
	for start := 0; start < recent; start += s.batchSize {
		end := start + s.batchSize
		if end > recent {
			end = recent
		}
		details := s.fetchBatch(ctx, req.PublicationID, remote[start:end])
		for i, d := range details {
			if d == nil || d.Stats == nil {
				failed++
				continue
			}
			id := d.ID
			if id == "" {
				id = remote[start+i].ID
			}
			pos, ok := byID[id]
			if !ok {
				failed++
				continue
			}
			posts[pos] = detailedPost(remote[pos], *d.Stats)
		}
	}
	if failed > 0 {
		ds.Warn(entity.WarningPartialFetch, "%d of %d post detail requests failed; those posts keep publication averages", failed, recent)
	}

	sortPosts(posts)
	ds.Posts = posts

	if pub != nil {
		ds.Audience = []entity.AudienceSnapshot{{
			Date:              s.now().UTC(),
			ActiveSubscribers: pub.ActiveSubscriptions,
		}}
	}

	s.logger.Info("sync complete",
		"publication_id", req.PublicationID,
		"posts", len(posts),
		"detailed", recent-failed,
		"warnings", len(ds.Warnings),
	)

	return ds, nil
}

// listAll pages through the listing until total_pages is exhausted. A failure
// after the first page keeps what was already fetched.
func (s *Syncer) listAll(ctx context.Context, ds *entity.Dataset, publicationID string) ([]RemotePost, error) {
	var all []RemotePost
	for page := 1; ; page++ {
		res, err := s.platform.ListPosts(ctx, publicationID, page, s.pageSize)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("listing posts: %w", err)
			}
			s.logger.Warn("post listing interrupted", "publication_id", publicationID, "page", page, "error", err)
			ds.Warn(entity.WarningPartialFetch, "post listing stopped at page %d: %v", page, err)
			break
		}

		for _, rp := range res.Posts {
			if rp.PublishedAt.IsZero() {
				continue
			}
			all = append(all, rp)
		}

		if len(res.Posts) == 0 || page >= res.TotalPages {
			break
		}
	}
	return all, nil
}

// fetchBatch runs one batch of detail requests concurrently and waits for all
// of them. Failures are logged and reported as nil entries.
func (s *Syncer) fetchBatch(ctx context.Context, publicationID string, batch []RemotePost) []*RemotePost {
	out := make([]*RemotePost, len(batch))

	var g errgroup.Group
	for i, rp := range batch {
		i, rp := i, rp
		g.Go(func() error {
			d, err := s.platform.GetPost(ctx, publicationID, rp.ID)
			if err != nil {
				s.logger.Warn("post detail fetch failed", "post_id", rp.ID, "error", err)
				return nil
			}
			out[i] = d
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// averagedPost approximates a post from publication-level totals
func averagedPost(rp RemotePost, pub *RemotePublication, n int) entity.Post {
	p := basePost(rp)
	p.Estimated = true
	if pub == nil || n == 0 {
		return p
	}

	count := int64(n)
	p.Sent = pub.TotalSent / count
	p.Delivered = pub.TotalDelivered / count
	if p.Delivered == 0 {
		p.Delivered = p.Sent
	}
	p.UniqueOpens = pub.TotalUniqueOpened / count
	p.UniqueClicks = pub.TotalClicked / count
	p.OpenRate = percentPtr(pub.AverageOpenRate)
	p.CTR = percentPtr(pub.AverageClickRate)
	p.DeliveryRate = entity.Ratio(p.Delivered, p.Sent)
	return p
}

// detailedPost builds a post from its own email stats
func detailedPost(rp RemotePost, st RemoteStats) entity.Post {
	p := basePost(rp)
	p.Sent = st.Recipients
	p.Delivered = st.Delivered
	p.TotalOpens = st.Opens
	p.UniqueOpens = st.UniqueOpens
	p.UniqueClicks = st.UniqueClicks
	p.VerifiedClicks = st.VerifiedClicks
	p.Unsubscribed = st.Unsubscribes
	p.OpenRate = percentPtr(st.OpenRate)
	p.CTR = percentPtr(st.ClickRate)
	p.VerifiedCTR = percentPtr(st.VerifiedClickRate)
	p.DeliveryRate = entity.Ratio(st.Delivered, st.Recipients)
	p.UnsubscribeRate = entity.Ratio(st.Unsubscribes, st.Delivered)
	return p
}

func basePost(rp RemotePost) entity.Post {
	p := entity.Post{
		ID:    rp.ID,
		Date:  rp.PublishedAt.UTC(),
		Title: rp.Title,
	}
	if len(rp.ContentTags) > 0 {
		tags := strings.Join(rp.ContentTags, ", ")
		p.ContentTags = &tags
	}
	return p
}

func percentPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	pct := normalize.Percent(*v)
	return &pct
}
