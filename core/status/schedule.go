// Package status implements the bounded, time-ordered status history used
// by every level of the charging hierarchy.
package status

import (
	"sync"
	"time"
)

// DefaultMaxListSize bounds a schedule when no explicit capacity is given.
const DefaultMaxListSize = 15

// Timestamped is an immutable (timestamp, value) pair. Entries are ordered
// by timestamp; equal timestamps are broken by insertion order, the most
// recent insertion winning "current".
type Timestamped[T any] struct {
	Timestamp time.Time
	Value     T
}

// InsertPolicy selects how consecutive identical values are handled.
type InsertPolicy int

const (
	// AppendAlways inserts every value, including repeats of the current one.
	AppendAlways InsertPolicy = iota
	// AppendOnChange skips an insert whose value equals the current value.
	AppendOnChange
)

// ChangeMethod governs bulk insertion.
type ChangeMethod int

const (
	// Replace substitutes the entire history with the given list.
	Replace ChangeMethod = iota
	// Insert adds the given list without clearing existing entries.
	Insert
)

// Schedule is a bounded history of status values, newest first. It is
// owned and mutated by a single hierarchy entity but may be read
// concurrently by ancestor aggregation queries.
type Schedule[T comparable] struct {
	mu      sync.RWMutex
	maxSize int
	policy  InsertPolicy
	entries []Timestamped[T]
}

// NewSchedule creates a schedule holding at most maxSize entries and
// inserts the initial status, so Current is defined from construction on.
// A non-positive maxSize falls back to DefaultMaxListSize.
func NewSchedule[T comparable](maxSize int, initial T, policy InsertPolicy) *Schedule[T] {
	if maxSize <= 0 {
		maxSize = DefaultMaxListSize
	}
	s := &Schedule[T]{maxSize: maxSize, policy: policy}
	s.entries = append(s.entries, Timestamped[T]{Timestamp: time.Now(), Value: initial})
	return s
}

// MaxSize returns the capacity of the schedule.
func (s *Schedule[T]) MaxSize() int { return s.maxSize }

// Len returns the number of retained entries.
func (s *Schedule[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Current returns the head entry. The constructor guarantees the schedule
// is never empty, so Current is always meaningful.
func (s *Schedule[T]) Current() Timestamped[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return Timestamped[T]{}
	}
	return s.entries[0]
}

// Insert appends a value stamped with the current wall clock.
func (s *Schedule[T]) Insert(value T) {
	s.InsertAt(value, time.Now())
}

// InsertAt appends a value with a caller-supplied timestamp, keeping the
// history sorted non-increasing by timestamp and evicting the oldest
// entries past capacity. With AppendOnChange a value equal to the current
// one is dropped.
func (s *Schedule[T]) InsertAt(value T, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(value, ts)
}

func (s *Schedule[T]) insertLocked(value T, ts time.Time) {
	if s.policy == AppendOnChange && len(s.entries) > 0 && s.entries[0].Value == value {
		return
	}
	// Equal timestamps sort the newer insertion closer to the head.
	idx := len(s.entries)
	for i, e := range s.entries {
		if !e.Timestamp.After(ts) {
			idx = i
			break
		}
	}
	entry := Timestamped[T]{Timestamp: ts, Value: value}
	s.entries = append(s.entries, Timestamped[T]{})
	copy(s.entries[idx+1:], s.entries[idx:])
	s.entries[idx] = entry
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[:s.maxSize]
	}
}

// InsertList applies a bulk change. With Replace the history becomes the
// given list (input order preserved, bounded to capacity); with Insert the
// entries are added through the sorted insert path. A nil or empty list is
// treated as "no data" and leaves the schedule untouched.
func (s *Schedule[T]) InsertList(entries []Timestamped[T], method ChangeMethod) {
	if len(entries) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch method {
	case Replace:
		n := len(entries)
		if n > s.maxSize {
			n = s.maxSize
		}
		s.entries = append(s.entries[:0], entries[:n]...)
	case Insert:
		for _, e := range entries {
			s.insertLocked(e.Value, e.Timestamp)
		}
	}
}

// Take returns the n most recent entries, newest first. A non-positive n
// returns the full history. The returned slice is a copy and safe to
// iterate repeatedly.
func (s *Schedule[T]) Take(n int) []Timestamped[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Timestamped[T], n)
	copy(out, s.entries[:n])
	return out
}

// History returns the full retained history, newest first.
func (s *Schedule[T]) History() []Timestamped[T] {
	return s.Take(0)
}
