package recognize

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// FaceLister is the slice of the repository the cache needs.
type FaceLister interface {
	ListFaces(ctx context.Context) ([]EnrolledFace, error)
}

type snapshot struct {
	faces   []EnrolledFace
	builtAt time.Time
}

// Cache holds the in-memory matching database, rebuilt from the enrollment
// store at a refresh cadence or on explicit invalidation. Readers always see
// a complete immutable snapshot: rebuilds construct a fresh snapshot and swap
// the pointer, never mutate in place. The snapshot is derived, disposable
// state; dropping it only costs a reload.
type Cache struct {
	lister  FaceLister
	refresh time.Duration

	snap atomic.Pointer[snapshot]
	mu   sync.Mutex // serializes rebuilds
}

// NewCache creates a cache that considers snapshots stale after refresh.
func NewCache(lister FaceLister, refresh time.Duration) *Cache {
	if refresh <= 0 {
		refresh = 5 * time.Minute
	}
	return &Cache{lister: lister, refresh: refresh}
}

// Database returns the matching database, optionally restricted to one
// station (stationID 0 means all stations). A stale or missing snapshot is
// rebuilt first; concurrent matches keep reading the previous snapshot
// while a rebuild is in flight.
func (c *Cache) Database(ctx context.Context, stationID int64) (Database, error) {
	s := c.snap.Load()
	if s == nil || time.Since(s.builtAt) > c.refresh {
		var err error
		if s, err = c.rebuild(ctx); err != nil {
			return nil, err
		}
	}

	db := make(Database, len(s.faces))
	for _, f := range s.faces {
		if stationID != 0 && f.StationID != stationID {
			continue
		}
		db[f.PersonID] = append(db[f.PersonID], Reference{FaceID: f.ID, Embedding: f.Embedding})
	}
	return db, nil
}

// Invalidate drops the current snapshot so the next Database call reloads.
// Called after enrollment writes.
func (c *Cache) Invalidate() {
	c.snap.Store(nil)
}

func (c *Cache) rebuild(ctx context.Context) (*snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have rebuilt while we waited for the lock.
	if s := c.snap.Load(); s != nil && time.Since(s.builtAt) <= c.refresh {
		return s, nil
	}

	faces, err := c.lister.ListFaces(ctx)
	if err != nil {
		return nil, err
	}
	s := &snapshot{faces: faces, builtAt: time.Now()}
	c.snap.Store(s)
	return s, nil
}
