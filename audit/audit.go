// Package audit provides an append-only JSONL trail of governance activity:
// policy executions, review decisions, revocations. Entries are flushed and
// synced on every append so the trail survives a crash.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EntryType classifies an audit entry.
type EntryType string

const (
	EntryAppDiscovered     EntryType = "app_discovered"
	EntryPolicyExecuted    EntryType = "policy_executed"
	EntryPolicySkipped     EntryType = "policy_skipped"
	EntryReviewDecision    EntryType = "review_decision"
	EntryRevocation        EntryType = "revocation"
	EntryCampaignCompleted EntryType = "campaign_completed"
)

// Entry is a single audit record.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
	Type      EntryType       `json:"type"`
	TenantID  string          `json:"tenant_id,omitempty"`
	RefID     string          `json:"ref_id,omitempty"` // policy, item or campaign ID
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error,omitempty"`
}

// Log is the append-only audit log.
type Log struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	sequence int64
	dir      string
}

// Open creates or opens an audit log in the specified directory.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	// Timestamped filename so rotation is a matter of reopening
	filename := fmt.Sprintf("ward-%s.audit", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	return &Log{
		file:   file,
		writer: bufio.NewWriter(file),
		dir:    dir,
	}, nil
}

// Close flushes and closes the log.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

// Append adds an entry to the log.
func (l *Log) Append(entryType EntryType, tenantID, refID string, data any) error {
	return l.append(entryType, tenantID, refID, data, nil)
}

// AppendError adds an entry carrying a failure.
func (l *Log) AppendError(entryType EntryType, tenantID, refID string, data any, cause error) error {
	return l.append(entryType, tenantID, refID, data, cause)
}

func (l *Log) append(entryType EntryType, tenantID, refID string, data any, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	l.sequence++
	entry := Entry{
		Timestamp: time.Now(),
		Sequence:  l.sequence,
		Type:      entryType,
		TenantID:  tenantID,
		RefID:     refID,
		Data:      jsonData,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	return l.writeEntry(entry)
}

func (l *Log) writeEntry(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if _, err := l.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	if _, err := l.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return l.file.Sync()
}

// Reader replays audit entries from one file.
type Reader struct {
	scanner *bufio.Scanner
	file    *os.File
}

// NewReader opens an audit file for replay.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	return &Reader{
		scanner: bufio.NewScanner(file),
		file:    file,
	}, nil
}

// Next reads the next entry, returning io.EOF at end of file.
func (r *Reader) Next() (*Entry, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	var entry Entry
	if err := json.Unmarshal(r.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Replay invokes handler for every entry after since, across all audit files
// in the directory.
func Replay(dir string, since time.Time, handler func(*Entry) error) error {
	files, err := filepath.Glob(filepath.Join(dir, "ward-*.audit"))
	if err != nil {
		return fmt.Errorf("failed to list audit files: %w", err)
	}

	for _, file := range files {
		if err := replayFile(file, since, handler); err != nil {
			return err
		}
	}
	return nil
}

func replayFile(path string, since time.Time, handler func(*Entry) error) error {
	reader, err := NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if entry.Timestamp.After(since) {
			if err := handler(entry); err != nil {
				return err
			}
		}
	}
}
