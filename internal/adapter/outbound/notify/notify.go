// Package notify delivers time-lock notifications. The log broker writes
// them to the process log; the file broker appends them to a JSONL outbox
// that an external mailer can drain.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/goldengate/goldengate/internal/domain/policy"
)

// LogBroker writes notifications to the structured log. Useful in
// development and as a fallback when no outbox is configured.
type LogBroker struct {
	logger *slog.Logger
}

var _ policy.Broker = (*LogBroker)(nil)

func NewLogBroker(logger *slog.Logger) *LogBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogBroker{logger: logger}
}

func (b *LogBroker) Send(_ context.Context, n policy.Notification) error {
	b.logger.Info("notification",
		slog.Any("recipients", n.Recipients),
		slog.String("message", n.Message))
	return nil
}

// FileBroker appends notifications to a JSONL outbox file.
type FileBroker struct {
	path string
	mu   sync.Mutex
}

var _ policy.Broker = (*FileBroker)(nil)

func NewFileBroker(path string) *FileBroker {
	return &FileBroker{path: path}
}

type outboxEntry struct {
	Time       time.Time `json:"time"`
	Recipients []string  `json:"recipients"`
	Message    string    `json:"message"`
}

func (b *FileBroker) Send(_ context.Context, n policy.Notification) error {
	data, err := json.Marshal(outboxEntry{
		Time:       time.Now().UTC(),
		Recipients: n.Recipients,
		Message:    n.Message,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open notification outbox: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}
