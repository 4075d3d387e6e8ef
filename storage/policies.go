package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/wardlabs/ward/types"
)

// SavePolicy creates or updates a policy.
func (s *Store) SavePolicy(policy *types.Policy) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx.Bucket(bucketPolicies), tenantKey(policy.TenantID, policy.ID), policy)
	})
}

// GetPolicy fetches one policy. Returns ErrNotFound if absent.
func (s *Store) GetPolicy(tenantID, policyID string) (*types.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var policy types.Policy
	err := s.db.View(func(tx *bbolt.Tx) error {
		return get(tx.Bucket(bucketPolicies), tenantKey(tenantID, policyID), &policy)
	})
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

// ListPolicies returns every policy for a tenant.
func (s *Store) ListPolicies(tenantID string) ([]types.Policy, error) {
	return s.listPolicies(tenantID, func(p *types.Policy) bool { return true })
}

// ListEnabledPoliciesByTrigger returns the tenant's enabled policies
// listening on a topic. This is the engine's matching query.
func (s *Store) ListEnabledPoliciesByTrigger(tenantID string, topic types.Topic) ([]types.Policy, error) {
	return s.listPolicies(tenantID, func(p *types.Policy) bool {
		return p.Enabled && p.TriggerType == topic
	})
}

func (s *Store) listPolicies(tenantID string, keep func(*types.Policy) bool) ([]types.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var policies []types.Policy
	prefix := []byte(tenantID + "/")

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketPolicies).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var policy types.Policy
			if err := json.Unmarshal(v, &policy); err != nil {
				return fmt.Errorf("corrupt policy %q: %w", k, err)
			}
			if keep(&policy) {
				policies = append(policies, policy)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return policies, nil
}

// DeletePolicy removes a policy. Returns ErrNotFound if absent.
func (s *Store) DeletePolicy(tenantID, policyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPolicies)
		key := tenantKey(tenantID, policyID)
		if bucket.Get(key) == nil {
			return ErrNotFound
		}
		return bucket.Delete(key)
	})
}

// TouchPolicyExecution updates a policy's execution bookkeeping in place:
// last-executed timestamp and outcome counter. Runs in its own transaction;
// callers that also persist the execution record should use
// RecordExecutionResult instead.
func (s *Store) TouchPolicyExecution(tenantID, policyID string, status types.ExecutionStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.touchPolicyTx(tx, tenantID, policyID, status, at)
	})
}

func (s *Store) touchPolicyTx(tx *bbolt.Tx, tenantID, policyID string, status types.ExecutionStatus, at time.Time) error {
	bucket := tx.Bucket(bucketPolicies)
	key := tenantKey(tenantID, policyID)

	var policy types.Policy
	if err := get(bucket, key, &policy); err != nil {
		return err
	}

	policy.LastExecutedAt = at
	policy.UpdatedAt = at
	switch status {
	case types.ExecutionSuccess:
		policy.Stats.Succeeded++
	case types.ExecutionPartial:
		policy.Stats.Partial++
	case types.ExecutionFailed:
		policy.Stats.Failed++
	}

	return put(bucket, key, &policy)
}
