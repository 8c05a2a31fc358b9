package memory

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePrimary is an in-memory PrimaryStore whose failure mode can be
// toggled per test.
type fakePrimary struct {
	mu      sync.Mutex
	records map[string][]Record
	failAll error // returned by every call when set

	appendCalls int
	clearCalls  int
}

func newFakePrimary() *fakePrimary {
	return &fakePrimary{records: make(map[string][]Record)}
}

func (p *fakePrimary) EnsureSchema(ctx context.Context) error {
	return p.failAll
}

func (p *fakePrimary) Append(ctx context.Context, chatID string, rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.appendCalls++
	if p.failAll != nil {
		return p.failAll
	}
	p.records[chatID] = append(p.records[chatID], rec)
	return nil
}

func (p *fakePrimary) FetchWindow(ctx context.Context, chatID string, limit int) ([]Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll != nil {
		return nil, p.failAll
	}
	records := append([]Record(nil), p.records[chatID]...)
	sortChronological(records)
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func (p *fakePrimary) Clear(ctx context.Context, chatID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearCalls++
	if p.failAll != nil {
		return p.failAll
	}
	delete(p.records, chatID)
	return nil
}

func (p *fakePrimary) DescribeStatus(ctx context.Context) StoreStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	status := StoreStatus{Configured: true, Backend: "fake"}
	if p.failAll != nil {
		status.Error = p.failAll.Error()
		return status
	}
	status.Reachable = true
	for _, recs := range p.records {
		status.Records += int64(len(recs))
	}
	return status
}

func testManager(t *testing.T, primary PrimaryStore) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{
		Primary:  primary,
		Fallback: NewFallbackStore(20),
		Logger:   zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	return m
}

func TestNewManager_RequiresFallback(t *testing.T) {
	m, err := NewManager(ManagerConfig{})
	assert.Error(t, err)
	assert.Nil(t, m)
}

func TestManager_AppendValidation(t *testing.T) {
	m := testManager(t, nil)
	ctx := context.Background()

	assert.Error(t, m.Append(ctx, "chat-1", Role("system"), "nope"))
	assert.Error(t, m.Append(ctx, "chat-1", RoleUser, ""))
	assert.NoError(t, m.Append(ctx, "chat-1", RoleUser, "hi"))
}

func TestManager_AppendThenFetch(t *testing.T) {
	m := testManager(t, newFakePrimary())
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "chat-1", RoleUser, "hi"))
	require.NoError(t, m.Append(ctx, "chat-1", RoleAssistant, "hello"))

	window := m.FetchWindow(ctx, "chat-1", 10)
	require.Len(t, window, 2)
	assert.Equal(t, Turn{Role: RoleUser, Content: "hi"}, window[0])
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "hello"}, window[1])
}

func TestManager_FallbackOnly(t *testing.T) {
	m := testManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "chat-1", RoleUser, "hi"))
	require.NoError(t, m.Append(ctx, "chat-1", RoleAssistant, "hello"))

	window := m.FetchWindow(ctx, "chat-1", 10)
	require.Len(t, window, 2)
	assert.Equal(t, Turn{Role: RoleUser, Content: "hi"}, window[0])
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "hello"}, window[1])
}

// Breaking the primary store must not change the observable outcome of
// append or fetch, only the durability of the data.
func TestManager_PrimaryFailureIsInvisible(t *testing.T) {
	failures := []error{
		fmt.Errorf("%w: connection refused", ErrStoreUnavailable),
		fmt.Errorf("%w: bad payload", ErrStoreRejected),
		fmt.Errorf("%w: malformed filter", ErrStoreQuery),
		fmt.Errorf("some unclassified failure"),
	}

	for _, failure := range failures {
		t.Run(failure.Error(), func(t *testing.T) {
			primary := newFakePrimary()
			primary.failAll = failure
			m := testManager(t, primary)
			ctx := context.Background()

			require.NoError(t, m.Append(ctx, "chat-1", RoleUser, "hi"))
			require.NoError(t, m.Append(ctx, "chat-1", RoleAssistant, "hello"))

			window := m.FetchWindow(ctx, "chat-1", 10)
			require.Len(t, window, 2)
			assert.Equal(t, Turn{Role: RoleUser, Content: "hi"}, window[0])
			assert.Equal(t, Turn{Role: RoleAssistant, Content: "hello"}, window[1])
		})
	}
}

func TestManager_PrimaryPreferredForReads(t *testing.T) {
	primary := newFakePrimary()
	m := testManager(t, primary)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "chat-1", RoleUser, "hi"))

	// Diverge the backends: wipe the primary only. The read must follow
	// the primary and ignore the fallback copy.
	primary.mu.Lock()
	delete(primary.records, "chat-1")
	primary.mu.Unlock()

	assert.Empty(t, m.FetchWindow(ctx, "chat-1", 10))
}

func TestManager_ClearIsIdempotentAcrossBackends(t *testing.T) {
	tests := []struct {
		name    string
		primary func() *fakePrimary
	}{
		{"healthy primary", func() *fakePrimary { return newFakePrimary() }},
		{"failing primary", func() *fakePrimary {
			p := newFakePrimary()
			p.failAll = fmt.Errorf("%w: down", ErrStoreUnavailable)
			return p
		}},
		{"no primary", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var primary PrimaryStore
			if tt.primary != nil {
				primary = tt.primary()
			}
			m := testManager(t, primary)
			ctx := context.Background()

			require.NoError(t, m.Append(ctx, "chat-1", RoleUser, "hi"))
			m.Clear(ctx, "chat-1")

			assert.Empty(t, m.FetchWindow(ctx, "chat-1", 10))
		})
	}
}

func TestManager_PartitionIsolation(t *testing.T) {
	m := testManager(t, newFakePrimary())
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "chat-a", RoleUser, "for a"))

	assert.Empty(t, m.FetchWindow(ctx, "chat-b", 10))
}

func TestManager_DefaultWindowLimit(t *testing.T) {
	m := testManager(t, nil)
	ctx := context.Background()

	assert.Equal(t, DefaultWindowLimit, m.WindowLimit())

	for i := 0; i < DefaultWindowLimit+5; i++ {
		require.NoError(t, m.Append(ctx, "chat-1", RoleUser, fmt.Sprintf("msg-%d", i)))
	}

	// limit <= 0 means "use the configured default".
	window := m.FetchWindow(ctx, "chat-1", 0)
	assert.Len(t, window, DefaultWindowLimit)
}

func TestManager_DescribeStatus(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		m := testManager(t, nil)
		status := m.DescribeStatus(context.Background())
		assert.False(t, status.Configured)
		assert.Equal(t, "fallback-only", status.Backend)
	})

	t.Run("configured and reachable", func(t *testing.T) {
		primary := newFakePrimary()
		m := testManager(t, primary)
		ctx := context.Background()
		require.NoError(t, m.Append(ctx, "chat-1", RoleUser, "hi"))

		status := m.DescribeStatus(ctx)
		assert.True(t, status.Configured)
		assert.True(t, status.Reachable)
		assert.Equal(t, int64(1), status.Records)
	})

	t.Run("configured but failing", func(t *testing.T) {
		primary := newFakePrimary()
		primary.failAll = fmt.Errorf("%w: down", ErrStoreUnavailable)
		m := testManager(t, primary)

		status := m.DescribeStatus(context.Background())
		assert.True(t, status.Configured)
		assert.False(t, status.Reachable)
		assert.NotEmpty(t, status.Error)
	})
}
