package dao

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

// DatasetPostgres implements DatasetRepository for PostgreSQL with one JSONB row per newsletter
type DatasetPostgres struct {
	pool *pgxpool.Pool
}

// NewDatasetPostgres creates a new PostgreSQL dataset repository
func NewDatasetPostgres(pool *pgxpool.Pool) *DatasetPostgres {
	return &DatasetPostgres{pool: pool}
}

// EnsureSchema creates the datasets table when it does not exist
func (r *DatasetPostgres) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS newsletter_datasets (
			newsletter_id TEXT PRIMARY KEY,
			version       INTEGER NOT NULL,
			kind          TEXT NOT NULL,
			payload       JSONB NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("creating newsletter_datasets: %w", err)
	}
	return nil
}

// Save upserts the dataset
func (r *DatasetPostgres) Save(ctx context.Context, ds *entity.Dataset) error {
	payload, err := entity.EncodeDataset(ds)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO newsletter_datasets (newsletter_id, version, kind, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (newsletter_id) DO UPDATE
		SET version = EXCLUDED.version, kind = EXCLUDED.kind,
		    payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query,
		ds.NewsletterID,
		entity.SchemaVersion,
		string(ds.Kind),
		payload,
		ds.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving dataset: %w", err)
	}
	return nil
}

// Get retrieves the dataset for a newsletter
func (r *DatasetPostgres) Get(ctx context.Context, newsletterID string) (*entity.Dataset, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		"SELECT payload FROM newsletter_datasets WHERE newsletter_id = $1",
		newsletterID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting dataset: %w", err)
	}

	return entity.DecodeDataset(payload)
}

// Delete removes the dataset for a newsletter
func (r *DatasetPostgres) Delete(ctx context.Context, newsletterID string) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM newsletter_datasets WHERE newsletter_id = $1", newsletterID)
	if err != nil {
		return fmt.Errorf("deleting dataset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return entity.ErrDatasetNotFound
	}
	return nil
}

// List returns all stored newsletter IDs
func (r *DatasetPostgres) List(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT newsletter_id FROM newsletter_datasets ORDER BY newsletter_id")
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning dataset id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating datasets: %w", err)
	}
	return ids, nil
}
