package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/wardlabs/ward/types"
)

// SaveCampaign creates or updates a campaign.
func (s *Store) SaveCampaign(campaign *types.AccessReviewCampaign) error {
	if err := campaign.Validate(); err != nil {
		return fmt.Errorf("invalid campaign: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx.Bucket(bucketCampaigns), tenantKey(campaign.TenantID, campaign.ID), campaign)
	})
}

// GetCampaign fetches one campaign. Returns ErrNotFound if absent.
func (s *Store) GetCampaign(tenantID, campaignID string) (*types.AccessReviewCampaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var campaign types.AccessReviewCampaign
	err := s.db.View(func(tx *bbolt.Tx) error {
		return get(tx.Bucket(bucketCampaigns), tenantKey(tenantID, campaignID), &campaign)
	})
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// ListCampaignsByStatus returns the tenant's campaigns in a given state.
func (s *Store) ListCampaignsByStatus(tenantID string, status types.CampaignStatus) ([]types.AccessReviewCampaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var campaigns []types.AccessReviewCampaign
	prefix := []byte(tenantID + "/")

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketCampaigns).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var campaign types.AccessReviewCampaign
			if err := json.Unmarshal(v, &campaign); err != nil {
				return fmt.Errorf("corrupt campaign %q: %w", k, err)
			}
			if campaign.Status == status {
				campaigns = append(campaigns, campaign)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

// SaveItem creates or updates a review item. Items key on campaign so a
// campaign's items scan as one prefix.
func (s *Store) SaveItem(item *types.AccessReviewItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx.Bucket(bucketItems), childKey(item.CampaignID, item.ID), item)
	})
}

// SaveItems writes a batch of review items in one transaction.
func (s *Store) SaveItems(items []types.AccessReviewItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketItems)
		for i := range items {
			if err := put(bucket, childKey(items[i].CampaignID, items[i].ID), &items[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetItem fetches one review item. Returns ErrNotFound if absent.
func (s *Store) GetItem(campaignID, itemID string) (*types.AccessReviewItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var item types.AccessReviewItem
	err := s.db.View(func(tx *bbolt.Tx) error {
		return get(tx.Bucket(bucketItems), childKey(campaignID, itemID), &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItemsByCampaign returns every item in a campaign.
func (s *Store) ListItemsByCampaign(campaignID string) ([]types.AccessReviewItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []types.AccessReviewItem
	prefix := []byte(campaignID + "/")

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketItems).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var item types.AccessReviewItem
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("corrupt review item %q: %w", k, err)
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// SaveItemWithTotals persists an updated item and its campaign's recomputed
// totals in a single transaction, keeping the aggregate counters consistent
// with the items under concurrent decisions.
func (s *Store) SaveItemWithTotals(item *types.AccessReviewItem, campaign *types.AccessReviewCampaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := put(tx.Bucket(bucketItems), childKey(item.CampaignID, item.ID), item); err != nil {
			return err
		}
		return put(tx.Bucket(bucketCampaigns), tenantKey(campaign.TenantID, campaign.ID), campaign)
	})
}

// SaveDecision appends an immutable decision audit record.
func (s *Store) SaveDecision(decision *types.ReviewDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		key := []byte(fmt.Sprintf("%s/%020d/%s", decision.CampaignID, decision.CreatedAt.UnixNano(), decision.ID))
		return put(tx.Bucket(bucketDecisions), key, decision)
	})
}

// ListDecisionsByCampaign returns a campaign's decision trail, oldest first.
func (s *Store) ListDecisionsByCampaign(campaignID string) ([]types.ReviewDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var decisions []types.ReviewDecision
	prefix := []byte(campaignID + "/")

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketDecisions).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var decision types.ReviewDecision
			if err := json.Unmarshal(v, &decision); err != nil {
				return fmt.Errorf("corrupt decision %q: %w", k, err)
			}
			decisions = append(decisions, decision)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decisions, nil
}
