package memory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/parleybot/parley/internal/observability"
	"github.com/rs/zerolog"
)

// DefaultWindowLimit is the number of prior turns included in a context
// window when the caller does not specify a limit.
const DefaultWindowLimit = 10

// PrimaryStore is the durable, queryable history backend. It may be
// absent (nil) or unreachable; every method except DescribeStatus can
// fail with one of the sentinel kinds in errors.go.
type PrimaryStore interface {
	EnsureSchema(ctx context.Context) error
	Append(ctx context.Context, chatID string, rec Record) error
	FetchWindow(ctx context.Context, chatID string, limit int) ([]Record, error)
	Clear(ctx context.Context, chatID string) error
	DescribeStatus(ctx context.Context) StoreStatus
}

// StoreStatus is the health summary exposed for diagnostics.
type StoreStatus struct {
	Configured bool   `json:"configured"`
	Reachable  bool   `json:"reachable"`
	Records    int64  `json:"records"`
	Backend    string `json:"backend"`
	Error      string `json:"error,omitempty"`
}

// Manager is the single entry point the request path uses for history.
// It writes both backends, reads primary-else-fallback, and converts
// every primary store failure into a fallback action plus a log line —
// no error originating here ever reaches the caller as a failure.
//
// The two backends are allowed to diverge during a primary outage; the
// fallback is an independent shadow history, not a cache that is filled
// from the primary. Availability wins over consistency here.
type Manager struct {
	primary  PrimaryStore
	fallback *FallbackStore
	window   int
	seq      atomic.Uint64
	logger   zerolog.Logger
}

// ManagerConfig holds memory manager construction parameters.
type ManagerConfig struct {
	Primary     PrimaryStore // nil means fallback-only mode
	Fallback    *FallbackStore
	WindowLimit int // defaults to DefaultWindowLimit
	Logger      zerolog.Logger
}

// NewManager creates a new memory manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	observability.EnsureRegistered()

	if cfg.Fallback == nil {
		return nil, errors.New("fallback store is required")
	}
	if cfg.WindowLimit <= 0 {
		cfg.WindowLimit = DefaultWindowLimit
	}

	m := &Manager{
		primary:  cfg.Primary,
		fallback: cfg.Fallback,
		window:   cfg.WindowLimit,
		logger:   cfg.Logger.With().Str("component", "memory").Logger(),
	}

	if m.primary == nil {
		m.logger.Info().Msg("Primary store not configured, running fallback-only")
	}

	return m, nil
}

// WindowLimit returns the default context window size.
func (m *Manager) WindowLimit() int {
	return m.window
}

// Append records one conversation turn. The fallback store is always
// written first so the in-process view is never empty; the primary write
// is best-effort and its failure never blocks or fails the caller.
// The only possible errors are caller mistakes (bad role, empty content).
func (m *Manager) Append(ctx context.Context, chatID string, role Role, content string) error {
	if !ValidRole(role) {
		return fmt.Errorf("invalid role %q", role)
	}
	if content == "" {
		return errors.New("content must not be empty")
	}

	start := time.Now()
	defer func() { observability.RecordMemoryAppend(time.Since(start)) }()

	rec := Record{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Seq:       m.seq.Add(1),
	}

	m.fallback.Append(chatID, rec)
	observability.SetFallbackPartitions(m.fallback.Partitions())

	if m.primary != nil {
		if err := m.primary.Append(ctx, chatID, rec); err != nil {
			m.logPrimaryFailure("append", chatID, err)
		}
	}

	return nil
}

// FetchWindow returns up to limit recent turns for the chat in
// chronological order, timestamps stripped. A zero or negative limit
// uses the configured default. Never fails: any primary store error
// degrades to the fallback store for this call only, with no retry.
func (m *Manager) FetchWindow(ctx context.Context, chatID string, limit int) []Turn {
	if limit <= 0 {
		limit = m.window
	}

	start := time.Now()
	defer func() { observability.RecordMemoryFetch(time.Since(start)) }()

	if m.primary != nil {
		records, err := m.primary.FetchWindow(ctx, chatID, limit)
		if err == nil {
			return toTurns(records)
		}
		m.logPrimaryFailure("fetch_window", chatID, err)
		observability.RecordFallbackActivation("fetch_window")
	}

	return toTurns(m.fallback.FetchWindow(chatID, limit))
}

// Clear erases the chat's history. The primary delete is best-effort;
// the fallback partition is always reset. Never fails.
func (m *Manager) Clear(ctx context.Context, chatID string) {
	if m.primary != nil {
		if err := m.primary.Clear(ctx, chatID); err != nil {
			m.logPrimaryFailure("clear", chatID, err)
		}
	}
	m.fallback.Clear(chatID)
}

// DescribeStatus reports the primary store health, or a not-configured
// status in fallback-only mode. Never fails.
func (m *Manager) DescribeStatus(ctx context.Context) StoreStatus {
	if m.primary == nil {
		return StoreStatus{Configured: false, Backend: "fallback-only"}
	}
	return m.primary.DescribeStatus(ctx)
}

// logPrimaryFailure classifies a primary store error for the log line
// and the error counter. Classification is the explicit branch that
// makes the never-fails-outward contract testable.
func (m *Manager) logPrimaryFailure(op, chatID string, err error) {
	kind := "unknown"
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		kind = "unavailable"
	case errors.Is(err, ErrStoreRejected):
		kind = "rejected"
	case errors.Is(err, ErrStoreQuery):
		kind = "query"
	}

	observability.RecordPrimaryError(op)
	m.logger.Warn().
		Err(err).
		Str("op", op).
		Str("chat_id", chatID).
		Str("kind", kind).
		Msg("Primary store failed, degrading to fallback")
}
