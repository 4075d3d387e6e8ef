package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/wardlabs/ward/types"
)

// CreateExecution persists a freshly started execution record.
func (s *Store) CreateExecution(exec *types.PolicyExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		key := executionKey(exec.PolicyID, exec.StartedAt.UnixNano(), exec.ID)
		return put(tx.Bucket(bucketExecutions), key, exec)
	})
}

// RecordExecutionResult finalizes an execution: the record, the policy's
// last-executed timestamp and its outcome counters are written in a single
// transaction so concurrent triggers never observe a half-updated policy.
func (s *Store) RecordExecutionResult(exec *types.PolicyExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		key := executionKey(exec.PolicyID, exec.StartedAt.UnixNano(), exec.ID)
		if err := put(tx.Bucket(bucketExecutions), key, exec); err != nil {
			return err
		}
		return s.touchPolicyTx(tx, exec.TenantID, exec.PolicyID, exec.Status, exec.FinishedAt)
	})
}

// GetExecution fetches one execution record by policy and ID.
func (s *Store) GetExecution(policyID, executionID string) (*types.PolicyExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *types.PolicyExecution
	prefix := []byte(policyID + "/")

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketExecutions).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var exec types.PolicyExecution
			if err := json.Unmarshal(v, &exec); err != nil {
				return fmt.Errorf("corrupt execution %q: %w", k, err)
			}
			if exec.ID == executionID {
				found = &exec
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// ListExecutions returns a policy's executions started at or after since,
// oldest first.
func (s *Store) ListExecutions(policyID string, since time.Time) ([]types.PolicyExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var execs []types.PolicyExecution
	prefix := []byte(policyID + "/")
	start := executionKey(policyID, since.UnixNano(), "")

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketExecutions).Cursor()
		for k, v := c.Seek(start); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var exec types.PolicyExecution
			if err := json.Unmarshal(v, &exec); err != nil {
				return fmt.Errorf("corrupt execution %q: %w", k, err)
			}
			execs = append(execs, exec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return execs, nil
}

// CountExecutionsSince counts a policy's runs started at or after since.
// The daily execution cap is enforced on top of this.
func (s *Store) CountExecutionsSince(policyID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	prefix := []byte(policyID + "/")
	start := executionKey(policyID, since.UnixNano(), "")

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketExecutions).Cursor()
		for k, _ := c.Seek(start); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SweepExecutionsBefore deletes execution records older than the cutoff and
// returns how many were removed. Idempotent; meant for a periodic retention
// sweep driven by an external scheduler.
func (s *Store) SweepExecutionsBefore(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	cutoffNanos := cutoff.UnixNano()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketExecutions)
		c := bucket.Cursor()

		var toDelete [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var exec types.PolicyExecution
			if err := json.Unmarshal(v, &exec); err != nil {
				continue // skip corrupt entries, don't abort the sweep
			}
			if exec.StartedAt.UnixNano() < cutoffNanos {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
		}

		for _, key := range toDelete {
			if err := bucket.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
