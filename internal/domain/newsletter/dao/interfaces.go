package dao

import (
	"context"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

// DatasetRepository stores one Dataset blob per newsletter.
// Implementations return entity.ErrDatasetNotFound from Get and Delete for unknown IDs.
type DatasetRepository interface {
	// Save replaces the stored dataset for ds.NewsletterID
	Save(ctx context.Context, ds *entity.Dataset) error

	// Get retrieves the dataset for a newsletter
	Get(ctx context.Context, newsletterID string) (*entity.Dataset, error)

	// Delete removes the dataset for a newsletter
	Delete(ctx context.Context, newsletterID string) error

	// List returns the IDs of all stored newsletters, sorted
	List(ctx context.Context) ([]string, error)
}
