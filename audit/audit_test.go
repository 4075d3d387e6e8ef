package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	log, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, log.Append(EntryPolicyExecuted, "t1", "pol-1", map[string]any{"status": "success"}))
	require.NoError(t, log.Append(EntryReviewDecision, "t1", "item-1", map[string]any{"decision": "revoked"}))
	require.NoError(t, log.AppendError(EntryRevocation, "t1", "item-1", map[string]any{"user": "u1"}, errors.New("api timeout")))
	require.NoError(t, log.Close())

	var entries []*Entry
	err = Replay(dir, time.Time{}, func(e *Entry) error {
		entries = append(entries, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, EntryPolicyExecuted, entries[0].Type)
	assert.Equal(t, int64(1), entries[0].Sequence)
	assert.Equal(t, "t1", entries[0].TenantID)

	assert.Equal(t, int64(3), entries[2].Sequence)
	assert.Equal(t, "api timeout", entries[2].Error)
}

func TestReplaySinceFilter(t *testing.T) {
	dir := t.TempDir()

	log, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, log.Append(EntryAppDiscovered, "t1", "app-1", map[string]any{"name": "slack"}))
	require.NoError(t, log.Close())

	var count int
	err = Replay(dir, time.Now().Add(time.Hour), func(e *Entry) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, count, "entries before the cutoff must be skipped")
}

func TestReplayEmptyDir(t *testing.T) {
	err := Replay(t.TempDir(), time.Time{}, func(e *Entry) error {
		t.Fatal("handler must not run for an empty directory")
		return nil
	})
	assert.NoError(t, err)
}
