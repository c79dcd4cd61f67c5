// Package segments provides the segment catalog consumed by the
// aggregation engine, fronted by an explicit TTL cache.
package segments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bqworks/paygrid/internal/domain"
)

// ErrSegmentNotFound is returned when a segment id is not in the catalog.
var ErrSegmentNotFound = errors.New("segment not found")

// Repository defines read access to the segment store.
type Repository interface {
	ListSegments(ctx context.Context) ([]domain.Segment, error)
}

// Catalog caches the segment list with a declared TTL. It is constructed
// once per process and passed by reference; Invalidate is the explicit
// hook for admin-side segment changes.
type Catalog struct {
	repo Repository
	ttl  time.Duration

	mu        sync.RWMutex
	segments  []domain.Segment
	byID      map[string]domain.Segment
	fetchedAt time.Time
}

// NewCatalog creates a catalog with the given cache TTL.
func NewCatalog(repo Repository, ttl time.Duration) *Catalog {
	return &Catalog{repo: repo, ttl: ttl}
}

// List returns all segments, refreshing the cache when stale.
func (c *Catalog) List(ctx context.Context) ([]domain.Segment, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Segment, len(c.segments))
	copy(out, c.segments)
	return out, nil
}

// Resolve looks up a single segment by id.
func (c *Catalog) Resolve(ctx context.Context, id string) (domain.Segment, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return domain.Segment{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	seg, ok := c.byID[id]
	if !ok {
		return domain.Segment{}, fmt.Errorf("%w: %s", ErrSegmentNotFound, id)
	}
	return seg, nil
}

// Invalidate drops the cached list; the next read refetches.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}

func (c *Catalog) ensureFresh(ctx context.Context) error {
	c.mu.RLock()
	fresh := !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	segments, err := c.repo.ListSegments(ctx)
	if err != nil {
		return fmt.Errorf("refresh segment catalog: %w", err)
	}

	byID := make(map[string]domain.Segment, len(segments))
	for _, s := range segments {
		byID[s.ID] = s
	}

	c.mu.Lock()
	c.segments = segments
	c.byID = byID
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return nil
}
