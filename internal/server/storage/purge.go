package storage

import (
	"context"
	"fmt"

	"github.com/dropgate/dropgate/internal/common"
	"github.com/dropgate/dropgate/internal/server/metrics"
)

// KeyResult reports the outcome of purging one key in PurgeMany.
type KeyResult struct {
	Key string
	Err error
}

// Purge removes every retrievable or restorable trace of key: all versions
// and all delete-markers. A naive delete on a versioned bucket only adds a
// delete-marker; this is the path that makes "delete" actually mean gone.
//
// The listing is fully enumerated (all pages) before the first delete call,
// so the deletion set comes from a single consistent sweep. Version records
// are never cached across calls; the store is the sole source of truth.
func (c *Client) Purge(ctx context.Context, bucket, key string) error {
	var doomed []ObjectVersion
	var marker *VersionMarker

	for {
		page, next, err := c.ListVersions(ctx, bucket, key, marker)
		if err != nil {
			return err
		}
		for _, v := range page {
			// The listing matches by prefix; keep only exact hits so a key
			// like "a/b" never drags "a/b.bak" along.
			if v.Key == key {
				doomed = append(doomed, v)
			}
		}
		if next == nil {
			break
		}
		marker = next
	}

	// No version metadata at all: unversioned bucket, a plain delete is
	// both sufficient and the only thing the store offers.
	if len(doomed) == 0 {
		return c.Delete(ctx, bucket, key)
	}

	// Batches run sequentially. The store gives no cross-batch atomicity;
	// sequential issuance at least keeps partial failures diagnosable.
	if err := c.DeleteVersionsBatch(ctx, bucket, doomed); err != nil {
		return err
	}

	metrics.VersionsPurgedTotal.Add(float64(len(doomed)))
	return nil
}

// PurgeMany runs Purge for each key in order. A failing key does not stop
// the sweep; every key gets its attempt and its own result. The returned
// error is non-nil if any key failed.
func (c *Client) PurgeMany(ctx context.Context, bucket string, keys []string) ([]KeyResult, error) {
	results := make([]KeyResult, 0, len(keys))
	failed := 0

	for _, key := range keys {
		err := c.Purge(ctx, bucket, key)
		if err != nil {
			failed++
		}
		results = append(results, KeyResult{Key: key, Err: err})
	}

	if failed > 0 {
		return results, fmt.Errorf("purge failed for %d of %d keys: %w", failed, len(keys), common.ErrStore)
	}
	return results, nil
}
