package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/wardlabs/ward/types"
)

// SaveApp creates or updates a catalog entry and keeps the name index in
// sync.
func (s *Store) SaveApp(app *types.SaaSApp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx.Bucket(bucketApps), tenantKey(app.TenantID, app.ID), app)
	})
	if err != nil {
		return err
	}

	s.appIndex.ReplaceOrInsert(&appIndexEntry{
		TenantID: app.TenantID,
		NormName: types.NormalizeName(app.Name),
		AppID:    app.ID,
	})
	return nil
}

// GetApp fetches one catalog entry. Returns ErrNotFound if absent.
func (s *Store) GetApp(tenantID, appID string) (*types.SaaSApp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getAppLocked(tenantID, appID)
}

func (s *Store) getAppLocked(tenantID, appID string) (*types.SaaSApp, error) {
	var app types.SaaSApp
	err := s.db.View(func(tx *bbolt.Tx) error {
		return get(tx.Bucket(bucketApps), tenantKey(tenantID, appID), &app)
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// FindAppByNormalizedName looks up a catalog entry by exact normalized name
// via the in-memory index. Returns ErrNotFound when no entry matches.
func (s *Store) FindAppByNormalizedName(tenantID, normName string) (*types.SaaSApp, error) {
	if normName == "" {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	probe := &appIndexEntry{TenantID: tenantID, NormName: normName}
	entry, found := s.appIndex.Get(probe)
	if !found {
		return nil, ErrNotFound
	}
	return s.getAppLocked(tenantID, entry.AppID)
}

// ListApps returns every catalog entry for a tenant.
func (s *Store) ListApps(tenantID string) ([]types.SaaSApp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var apps []types.SaaSApp
	prefix := []byte(tenantID + "/")

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketApps).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var app types.SaaSApp
			if err := json.Unmarshal(v, &app); err != nil {
				return fmt.Errorf("corrupt catalog entry %q: %w", k, err)
			}
			apps = append(apps, app)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// CountApps returns the tenant's catalog size.
func (s *Store) CountApps(tenantID string) (int, error) {
	apps, err := s.ListApps(tenantID)
	if err != nil {
		return 0, err
	}
	return len(apps), nil
}
