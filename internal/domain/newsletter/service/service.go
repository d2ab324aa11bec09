package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

// DatasetRepository defines the interface for dataset storage
type DatasetRepository interface {
	Save(ctx context.Context, ds *entity.Dataset) error
	Get(ctx context.Context, newsletterID string) (*entity.Dataset, error)
	Delete(ctx context.Context, newsletterID string) error
	List(ctx context.Context) ([]string, error)
}

// SyncToken identifies one sync attempt for a newsletter
type SyncToken struct {
	NewsletterID string
	Generation   uint64
}

// Service keeps the imported datasets. Reads are served from an in-memory
// cache backed by the repository. Every write bumps a per-newsletter
// generation so that a sync which finishes after a newer import or sync is
// discarded instead of overwriting fresher data.
//
// Writers are serialized by writeMu for the whole repository round trip.
// mu only guards the cache and generations, so reads never wait on
// repository I/O.
//
// Cached datasets are shared with callers and must be treated as read-only.
type Service struct {
	repo DatasetRepository
	now  func() time.Time

	writeMu sync.Mutex

	mu          sync.RWMutex
	cache       map[string]*entity.Dataset
	generations map[string]uint64
}

// loadAttempts bounds how often Get reloads when writes keep racing it
const loadAttempts = 3

// New creates a new dataset service
func New(repo DatasetRepository) *Service {
	return &Service{
		repo:        repo,
		now:         time.Now,
		cache:       make(map[string]*entity.Dataset),
		generations: make(map[string]uint64),
	}
}

// WithClock replaces the clock used to stamp UpdatedAt
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns the dataset for a newsletter, loading it from the repository on
// a cache miss. A load is only cached when no write happened while it ran.
func (s *Service) Get(ctx context.Context, newsletterID string) (*entity.Dataset, error) {
	if newsletterID == "" {
		return nil, entity.ErrEmptyNewsletter
	}

	var ds *entity.Dataset
	for attempt := 0; attempt < loadAttempts; attempt++ {
		s.mu.RLock()
		cached, ok := s.cache[newsletterID]
		gen := s.generations[newsletterID]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		loaded, err := s.repo.Get(ctx, newsletterID)
		if err != nil {
			return nil, err
		}
		ds = loaded

		s.mu.Lock()
		if cached, ok := s.cache[newsletterID]; ok {
			s.mu.Unlock()
			return cached, nil // a write landed while loading
		}
		if s.generations[newsletterID] == gen {
			s.cache[newsletterID] = ds
			s.mu.Unlock()
			return ds, nil
		}
		s.mu.Unlock()
	}
	return ds, nil
}

// Replace stores an imported dataset unconditionally. Any sync still in
// flight for the newsletter becomes stale.
func (s *Service) Replace(ctx context.Context, ds *entity.Dataset) error {
	if ds.NewsletterID == "" {
		return entity.ErrEmptyNewsletter
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.generations[ds.NewsletterID]++
	s.mu.Unlock()

	return s.store(ctx, ds)
}

// BeginSync starts a sync attempt and returns its token
func (s *Service) BeginSync(newsletterID string) SyncToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generations[newsletterID]++
	return SyncToken{NewsletterID: newsletterID, Generation: s.generations[newsletterID]}
}

// CommitSync stores the result of a sync attempt if no newer import or sync
// has started since its BeginSync. Otherwise it returns entity.ErrStaleSync.
func (s *Service) CommitSync(ctx context.Context, token SyncToken, ds *entity.Dataset) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	current := s.generations[token.NewsletterID]
	s.mu.RUnlock()
	if current != token.Generation {
		return entity.ErrStaleSync
	}

	ds.NewsletterID = token.NewsletterID
	return s.store(ctx, ds)
}

// Delete removes a newsletter's dataset
func (s *Service) Delete(ctx context.Context, newsletterID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.repo.Delete(ctx, newsletterID); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, newsletterID)
	s.generations[newsletterID]++
	s.mu.Unlock()
	return nil
}

// List returns the IDs of all stored newsletters
func (s *Service) List(ctx context.Context) ([]string, error) {
	ids, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	return ids, nil
}

// store saves ds and publishes it to the cache. Callers hold writeMu.
func (s *Service) store(ctx context.Context, ds *entity.Dataset) error {
	ds.Version = entity.SchemaVersion
	ds.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, ds); err != nil {
		return fmt.Errorf("saving dataset: %w", err)
	}

	s.mu.Lock()
	s.cache[ds.NewsletterID] = ds
	s.mu.Unlock()
	return nil
}
