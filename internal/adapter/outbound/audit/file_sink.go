// Package audit provides file-based audit persistence in JSON Lines format
// with daily rotation.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goldengate/goldengate/internal/domain/rule"
)

// FileSink appends audit records as JSON lines to audit-YYYY-MM-DD.log files
// under a directory, rotating when the date changes.
type FileSink struct {
	dir         string
	mu          sync.Mutex
	currentFile *os.File
	currentDate string
}

var _ rule.Sink = (*FileSink)(nil)

// NewFileSink creates the audit directory if needed and returns a sink
// writing into it.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Record appends one audit record. Safe for concurrent use.
func (s *FileSink) Record(rec rule.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	date := rec.Time.UTC().Format(time.DateOnly)
	if s.currentFile == nil || date != s.currentDate {
		if err := s.rotate(date); err != nil {
			return err
		}
	}

	if _, err := s.currentFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// rotate opens the audit file for date, closing the previous one.
// Callers hold s.mu.
func (s *FileSink) rotate(date string) error {
	if s.currentFile != nil {
		s.currentFile.Close()
		s.currentFile = nil
	}
	path := filepath.Join(s.dir, "audit-"+date+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	s.currentFile = f
	s.currentDate = date
	return nil
}

// Close flushes and closes the current audit file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentFile == nil {
		return nil
	}
	err := s.currentFile.Close()
	s.currentFile = nil
	return err
}
