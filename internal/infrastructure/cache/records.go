package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const recordPrefix = "asset:record:"

// RecordCache keeps encoded asset records in Redis with a TTL.
type RecordCache struct {
	Rdb *redis.Client
	TTL time.Duration
}

func recordKey(assetID uuid.UUID) string {
	return recordPrefix + assetID.String()
}

// Get returns the cached record and whether it was present.
func (c *RecordCache) Get(ctx context.Context, assetID uuid.UUID) ([]byte, bool, error) {
	b, err := c.Rdb.Get(ctx, recordKey(assetID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RecordCache) Put(ctx context.Context, assetID uuid.UUID, record []byte) error {
	return c.Rdb.Set(ctx, recordKey(assetID), record, c.TTL).Err()
}

func (c *RecordCache) Invalidate(ctx context.Context, assetID uuid.UUID) error {
	return c.Rdb.Del(ctx, recordKey(assetID)).Err()
}
