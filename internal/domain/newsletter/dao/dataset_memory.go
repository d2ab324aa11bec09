package dao

import (
	"context"
	"sort"
	"sync"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

// DatasetMemory implements DatasetRepository in process memory. Datasets are
// stored encoded so callers never share slices with the store.
type DatasetMemory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewDatasetMemory creates an empty in-memory repository
func NewDatasetMemory() *DatasetMemory {
	return &DatasetMemory{blobs: make(map[string][]byte)}
}

// Save replaces the stored dataset
func (r *DatasetMemory) Save(_ context.Context, ds *entity.Dataset) error {
	payload, err := entity.EncodeDataset(ds)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.blobs[ds.NewsletterID] = payload
	r.mu.Unlock()
	return nil
}

// Get retrieves a copy of the stored dataset
func (r *DatasetMemory) Get(_ context.Context, newsletterID string) (*entity.Dataset, error) {
	r.mu.RLock()
	payload, ok := r.blobs[newsletterID]
	r.mu.RUnlock()
	if !ok {
		return nil, entity.ErrDatasetNotFound
	}
	return entity.DecodeDataset(payload)
}

// Delete removes the stored dataset
func (r *DatasetMemory) Delete(_ context.Context, newsletterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blobs[newsletterID]; !ok {
		return entity.ErrDatasetNotFound
	}
	delete(r.blobs, newsletterID)
	return nil
}

// List returns stored newsletter IDs, sorted
func (r *DatasetMemory) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.blobs))
	for id := range r.blobs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}
