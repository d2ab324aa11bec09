package dao

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
)

// Key layout under the configured prefix
const (
	datasetKeyPrefix = "dataset:"
	datasetIndexKey  = "datasets"
)

// DatasetRedis implements DatasetRepository on Redis: one string key per
// newsletter plus a set indexing the stored IDs.
type DatasetRedis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewDatasetRedis creates a Redis dataset repository. A zero ttl keeps entries forever.
func NewDatasetRedis(client *redis.Client, prefix string, ttl time.Duration) *DatasetRedis {
	return &DatasetRedis{client: client, prefix: prefix, ttl: ttl}
}

func (r *DatasetRedis) key(newsletterID string) string {
	return r.prefix + datasetKeyPrefix + newsletterID
}

// Save stores the dataset and indexes its ID
func (r *DatasetRedis) Save(ctx context.Context, ds *entity.Dataset) error {
	payload, err := entity.EncodeDataset(ds)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(ds.NewsletterID), payload, r.ttl)
	pipe.SAdd(ctx, r.prefix+datasetIndexKey, ds.NewsletterID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save dataset failed: %w", err)
	}
	return nil
}

// Get retrieves the dataset for a newsletter
func (r *DatasetRedis) Get(ctx context.Context, newsletterID string) (*entity.Dataset, error) {
	payload, err := r.client.Get(ctx, r.key(newsletterID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, entity.ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get dataset failed: %w", err)
	}
	return entity.DecodeDataset(payload)
}

// Delete removes the dataset and its index entry
func (r *DatasetRedis) Delete(ctx context.Context, newsletterID string) error {
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.key(newsletterID))
	pipe.SRem(ctx, r.prefix+datasetIndexKey, newsletterID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete dataset failed: %w", err)
	}
	if del.Val() == 0 {
		return entity.ErrDatasetNotFound
	}
	return nil
}

// List returns indexed newsletter IDs. Entries whose key expired are pruned from the index.
func (r *DatasetRedis) List(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.prefix+datasetIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list datasets failed: %w", err)
	}

	live := ids[:0]
	for _, id := range ids {
		n, err := r.client.Exists(ctx, r.key(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis exists failed: %w", err)
		}
		if n == 0 {
			r.client.SRem(ctx, r.prefix+datasetIndexKey, id)
			continue
		}
		live = append(live, id)
	}
	sort.Strings(live)
	return live, nil
}
