// Package audit records one free-text line per ledger operation, keyed by
// account name and a category tag.
package audit

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CategoryAccount tags entries produced by the account ledger.
const CategoryAccount = "account"

// Log appends audit entries.
type Log interface {
	Write(ctx context.Context, account, category, message string) error
}

// Entry is one recorded audit line.
type Entry struct {
	Time     time.Time `json:"time"`
	Account  string    `json:"account"`
	Category string    `json:"category"`
	Message  string    `json:"message"`
}

// Writer emits entries as JSON lines through zerolog.
type Writer struct {
	log zerolog.Logger
}

// NewWriter writes audit lines to w (typically a logger.RotatingFile).
func NewWriter(w io.Writer) *Writer {
	return &Writer{log: zerolog.New(w).With().Timestamp().Logger()}
}

func (w *Writer) Write(_ context.Context, account, category, message string) error {
	w.log.Log().
		Str("account", account).
		Str("category", category).
		Msg(message)
	return nil
}

// Memory keeps entries in process. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// NewMemory returns an empty in-process audit log.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) Write(_ context.Context, account, category, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Time: m.now(), Account: account, Category: category, Message: message})
	return nil
}

// Recent returns up to n of the latest entries for account, oldest first.
// n <= 0 returns all of them.
func (m *Memory) Recent(account string, n int) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.Account == account {
			out = append(out, e)
		}
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Write(context.Context, string, string, string) error { return nil }
