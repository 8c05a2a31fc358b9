package memory

import (
	"sync"
	"time"
)

// DefaultFallbackCapacity is the number of records retained per chat
// when no explicit capacity is configured.
const DefaultFallbackCapacity = 20

// FallbackStore is the always-available in-process history. Every chat
// partition is an independent bounded slice; the store performs no I/O
// and none of its operations can fail.
type FallbackStore struct {
	mu         sync.RWMutex
	capacity   int
	partitions map[string][]Record
	lastActive map[string]time.Time
}

// NewFallbackStore creates a fallback store retaining at most capacity
// records per chat. Non-positive capacities fall back to the default.
func NewFallbackStore(capacity int) *FallbackStore {
	if capacity <= 0 {
		capacity = DefaultFallbackCapacity
	}
	return &FallbackStore{
		capacity:   capacity,
		partitions: make(map[string][]Record),
		lastActive: make(map[string]time.Time),
	}
}

// Append adds a record to the chat's partition, creating the partition
// lazily and trimming it to the most recent capacity records.
func (s *FallbackStore) Append(chatID string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.partitions[chatID]
	seq = append(seq, rec)
	if len(seq) > s.capacity {
		// Oldest trimmed first; copy so the backing array does not
		// pin trimmed records.
		trimmed := make([]Record, s.capacity)
		copy(trimmed, seq[len(seq)-s.capacity:])
		seq = trimmed
	}
	s.partitions[chatID] = seq
	s.lastActive[chatID] = time.Now()
}

// FetchWindow returns the last limit records for the chat in
// chronological order. Unknown chats yield an empty slice.
func (s *FallbackStore) FetchWindow(chatID string, limit int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.partitions[chatID]
	if limit > 0 && len(seq) > limit {
		seq = seq[len(seq)-limit:]
	}
	out := make([]Record, len(seq))
	copy(out, seq)
	return out
}

// Clear resets the chat's partition to empty. The partition entry is
// kept so a cleared chat stays cheap to append to.
func (s *FallbackStore) Clear(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions[chatID] = nil
	s.lastActive[chatID] = time.Now()
}

// Capacity returns the per-chat record bound.
func (s *FallbackStore) Capacity() int {
	return s.capacity
}

// Partitions returns the number of chat partitions currently held.
func (s *FallbackStore) Partitions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.partitions)
}

// SweepIdle removes partitions that have seen no activity for at least
// maxIdle and returns how many were dropped. This bounds process memory
// for long-running deployments with many one-off chats.
func (s *FallbackStore) SweepIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for chatID, seen := range s.lastActive {
		if seen.Before(cutoff) {
			delete(s.partitions, chatID)
			delete(s.lastActive, chatID)
			removed++
		}
	}
	return removed
}
