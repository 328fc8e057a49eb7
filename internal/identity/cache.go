// Package identity caches the externally-synced identity fields (username,
// display name, role) the core reads for eligibility checks. The cache is a
// local bbolt file so repeated lookups during event processing stay off the
// main database.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"

	"haven/internal/metrics"
)

// BucketIdentities stores cached identity snapshots keyed by user ID
var BucketIdentities = []byte("identities")

// DefaultTTL is how long a cached identity is considered fresh
const DefaultTTL = 15 * time.Minute

// Snapshot is the cached slice of a user's identity
type Snapshot struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Cache is a TTL cache over identity snapshots
type Cache struct {
	db  *bolt.DB
	ttl time.Duration
}

// Options configures the identity cache
type Options struct {
	// Path to the database file. Parent directories are created if needed.
	Path string

	// TTL for cached entries. Zero means DefaultTTL.
	TTL time.Duration

	// Timeout for obtaining the file lock. Zero means 5 seconds.
	Timeout time.Duration
}

// Open creates or opens the identity cache at the given path
func Open(opts Options) (*Cache, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("identity cache path is required")
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}

	dir := filepath.Dir(opts.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := bolt.Open(opts.Path, 0600, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open identity cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(BucketIdentities)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{db: db, ttl: opts.TTL}, nil
}

// Close closes the cache file
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns a fresh cached snapshot, or nil on a miss or stale entry
func (c *Cache) Get(userID string) (*Snapshot, error) {
	var snap *Snapshot
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(BucketIdentities).Get([]byte(userID))
		if data == nil {
			return nil
		}
		var s Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to unmarshal cached identity: %w", err)
		}
		if time.Since(s.FetchedAt) > c.ttl {
			return nil
		}
		snap = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	if snap == nil {
		metrics.IdentityCacheMissesTotal.Inc()
		return nil, nil
	}
	metrics.IdentityCacheHitsTotal.Inc()
	return snap, nil
}

// Put stores a snapshot, stamping it with the current time
func (c *Cache) Put(snap Snapshot) error {
	snap.FetchedAt = time.Now()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketIdentities).Put([]byte(snap.UserID), data)
	})
}

// Invalidate removes a cached snapshot, forcing the next lookup to refetch
func (c *Cache) Invalidate(userID string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketIdentities).Delete([]byte(userID))
	})
}

// Prune removes all stale entries. Safe to run on any cadence.
func (c *Cache) Prune() (int, error) {
	var pruned int
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(BucketIdentities)
		cursor := b.Cursor()
		var stale [][]byte
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var s Snapshot
			if err := json.Unmarshal(v, &s); err != nil || time.Since(s.FetchedAt) > c.ttl {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		pruned = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		log.Debug().Int("pruned", pruned).Msg("stale identity cache entries removed")
	}
	return pruned, nil
}
