package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/parleybot/parley/internal/observability"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	// DefaultSweepSchedule runs the sweep at the top of every hour.
	DefaultSweepSchedule = "0 * * * *"

	// DefaultSweepMaxIdle is how long a chat partition may sit untouched
	// in the fallback store before the sweeper drops it.
	DefaultSweepMaxIdle = 24 * time.Hour
)

// Sweeper periodically drops idle chat partitions from the fallback
// store so a long-lived process does not accumulate one-off chats
// forever. Only the fallback store is swept; the primary store keeps
// durable history.
type Sweeper struct {
	fallback *FallbackStore
	maxIdle  time.Duration
	cron     *cron.Cron
	entry    cron.EntryID
	mu       sync.Mutex
	running  bool
	logger   zerolog.Logger
}

// NewSweeper creates a sweeper on the given fallback store. schedule is
// a standard five-field cron expression; empty values use the defaults.
func NewSweeper(fallback *FallbackStore, schedule string, maxIdle time.Duration, logger zerolog.Logger) (*Sweeper, error) {
	if fallback == nil {
		return nil, fmt.Errorf("fallback store is required")
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if maxIdle <= 0 {
		maxIdle = DefaultSweepMaxIdle
	}

	s := &Sweeper{
		fallback: fallback,
		maxIdle:  maxIdle,
		cron:     cron.New(),
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}

	entry, err := s.cron.AddFunc(schedule, s.sweep)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.entry = entry

	return s, nil
}

// Start begins the sweep schedule.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.cron.Start()

	s.logger.Info().
		Dur("max_idle", s.maxIdle).
		Msg("Fallback sweeper started")

	return nil
}

// Stop halts the schedule. A sweep already in flight finishes.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("sweeper is not running")
	}
	s.running = false
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.logger.Info().Msg("Fallback sweeper stopped")

	return nil
}

// sweep drops idle partitions and refreshes the partition gauge.
func (s *Sweeper) sweep() {
	removed := s.fallback.SweepIdle(s.maxIdle)
	remaining := s.fallback.Partitions()
	observability.SetFallbackPartitions(remaining)

	if removed > 0 {
		s.logger.Info().
			Int("removed", removed).
			Int("remaining", remaining).
			Msg("Swept idle chat partitions")
	}
}
