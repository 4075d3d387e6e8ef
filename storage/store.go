// Package storage persists the governance state: policies, policy
// executions, the SaaS app catalog, and access-review campaigns. Everything
// is tenant-keyed. Single-entity updates run inside one bbolt transaction,
// which gives the per-entity atomicity cooldown enforcement and campaign
// counters depend on.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/wardlabs/ward/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Bucket names in bbolt
var (
	bucketPolicies   = []byte("policies")
	bucketExecutions = []byte("executions")
	bucketApps       = []byte("apps")
	bucketCampaigns  = []byte("campaigns")
	bucketItems      = []byte("review_items")
	bucketDecisions  = []byte("review_decisions")
)

// appIndexEntry is the in-memory catalog index record, ordered by
// (tenant, normalized name).
type appIndexEntry struct {
	TenantID string
	NormName string
	AppID    string
}

func appIndexLess(a, b *appIndexEntry) bool {
	if a.TenantID != b.TenantID {
		return a.TenantID < b.TenantID
	}
	return a.NormName < b.NormName
}

// Store is the bbolt-backed persistence layer.
type Store struct {
	mu sync.RWMutex

	db *bbolt.DB

	// In-memory index for the detector's exact-name match tier
	appIndex *btree.BTreeG[*appIndexEntry]

	dir string
}

// Open creates or opens a store in the given directory.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "ward.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			bucketPolicies, bucketExecutions, bucketApps,
			bucketCampaigns, bucketItems, bucketDecisions,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:       db,
		appIndex: btree.NewG[*appIndexEntry](32, appIndexLess),
		dir:      dir,
	}

	if err := s.rebuildAppIndex(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to rebuild app index: %w", err)
	}

	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebuildAppIndex scans the catalog bucket and repopulates the name index.
func (s *Store) rebuildAppIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketApps).ForEach(func(k, v []byte) error {
			var app types.SaaSApp
			if err := json.Unmarshal(v, &app); err != nil {
				return fmt.Errorf("corrupt catalog entry %q: %w", k, err)
			}
			s.appIndex.ReplaceOrInsert(&appIndexEntry{
				TenantID: app.TenantID,
				NormName: types.NormalizeName(app.Name),
				AppID:    app.ID,
			})
			return nil
		})
	})
}

// Key helpers. Tenant-scoped buckets key on "tenant/id"; executions key on
// "policyID/paddedNanos/id" so a cursor prefix scan yields a policy's runs in
// time order.

func tenantKey(tenantID, id string) []byte {
	return []byte(tenantID + "/" + id)
}

func childKey(parentID, id string) []byte {
	return []byte(parentID + "/" + id)
}

func executionKey(policyID string, startedNanos int64, id string) []byte {
	return []byte(fmt.Sprintf("%s/%020d/%s", policyID, startedNanos, id))
}

func put(bucket *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	return bucket.Put(key, data)
}

func get(bucket *bbolt.Bucket, key []byte, v any) error {
	data := bucket.Get(key)
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, v)
}
