// Package blobcache implements the inbound blob cache (spec.md §4.8): a
// content-addressed, best-effort holding area for registered COSE_Sign1
// statements, swept on a TTL since the queue (not this cache) is the
// authoritative ingress record.
package blobcache

import (
	"context"
	"fmt"
	"io"

	"github.com/datatrails/go-datatrails-common/azblob"
	"github.com/google/uuid"

	"github.com/datatrails/go-datatrails-sequencer/massifs"
)

// blobStore is the subset of the datatrails azblob client the cache needs.
// Delete is not exercised anywhere in the teacher's own code (its scope
// stops at the storage tier, below any sweep/expiry concern), so its exact
// shape here is this repo's own best-effort extension of the same client,
// not a confirmed method signature.
type blobStore interface {
	azblob.Reader
	Put(ctx context.Context, identity string, body io.ReadCloser, opts ...azblob.Option) (*azblob.WriteResponse, error)
	List(ctx context.Context, opts ...azblob.Option) (*azblob.ListerResponse, error)
	Delete(ctx context.Context, identity string) error
}

// Cache writes and sweeps objects under logs/{logId}/leaves/{fenceIndex}/{sha256hex}.
type Cache struct {
	store blobStore
}

func New(store blobStore) *Cache {
	return &Cache{store: store}
}

// Put stores the raw COSE bytes for a registered statement under a key that
// carries the log and fence index, so Sweep can find them again by listing
// the log's prefix and parsing the fence from each name, without keeping a
// separate index. The log id and fence index are also attached as tags.
func (c *Cache) Put(ctx context.Context, logID uuid.UUID, fenceIndex uint64, sha256Hex string, data []byte) error {
	key := massifs.InboundLeafObjectKey(logID, fenceIndex, sha256Hex)
	tags := map[string]string{
		"logId":      logID.String(),
		"fenceIndex": fmt.Sprintf("%d", fenceIndex),
		"cacheControl": "public, max-age=31536000, immutable",
	}
	_, err := c.store.Put(ctx, key, azblob.NewBytesReaderCloser(data), azblob.WithTags(tags))
	return err
}

// Get reads back a cached statement, for handlers that want to avoid a
// round trip to the queue while an entry is still pending.
func (c *Cache) Get(ctx context.Context, logID uuid.UUID, fenceIndex uint64, sha256Hex string) ([]byte, error) {
	rr, err := c.store.Reader(ctx, massifs.InboundLeafObjectKey(logID, fenceIndex, sha256Hex))
	if err != nil {
		return nil, err
	}
	if rr.Body == nil {
		return nil, nil
	}
	defer rr.Body.Close()
	return io.ReadAll(rr.Body)
}

// Sweep lists every object under a log's leaf prefix and deletes those
// whose fence index is older than the retention floor, implementing the
// scheduled TTL sweep described in spec.md §4.8. The queue remains the
// authoritative ingress record, so a sweep that races a slow registration
// is safe: at worst a status lookup falls back to the queue.
func (c *Cache) Sweep(ctx context.Context, logID uuid.UUID, retainFenceIndex uint64) (int, error) {
	prefix := fmt.Sprintf("logs/%s/leaves/", logID.String())
	listing, err := c.store.List(ctx, azblob.WithListPrefix(prefix))
	if err != nil {
		return 0, fmt.Errorf("blobcache: listing for sweep: %w", err)
	}
	swept := 0
	for _, name := range listing.Names {
		fenceIndex, ok := parseFenceIndex(prefix, name)
		if !ok || fenceIndex >= retainFenceIndex {
			continue
		}
		if err := c.store.Delete(ctx, name); err != nil {
			return swept, fmt.Errorf("blobcache: deleting %s: %w", name, err)
		}
		swept++
	}
	return swept, nil
}

func parseFenceIndex(prefix, name string) (uint64, bool) {
	if len(name) <= len(prefix) {
		return 0, false
	}
	rest := name[len(prefix):]
	var fenceIndex uint64
	var rem string
	n, err := fmt.Sscanf(rest, "%d/%s", &fenceIndex, &rem)
	if err != nil || n < 1 {
		return 0, false
	}
	return fenceIndex, true
}
