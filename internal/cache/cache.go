package cache

import (
	"context"
	"time"

	"github.com/KKNMAL003/dash/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Store is a keyed query cache owned by a single goroutine. All reads and
// writes travel over a channel, so the single-writer invariant holds
// without locks. Values put into the store must be treated as immutable;
// patches replace values rather than mutating them in place, which is what
// makes Snapshot/Restore an exact rollback.
type Store struct {
	ops    chan func(map[Key]*entry)
	stop   chan struct{}
	logger *logrus.Logger

	// seq is only touched inside ops, which run serially on the owning
	// goroutine.
	seq uint64
}

type entry struct {
	value     interface{}
	updatedAt time.Time
	invalid   bool
	gen       uint64
}

// Snapshot captures one entry's state so an optimistic mutation can be
// rolled back exactly.
type Snapshot struct {
	key       Key
	value     interface{}
	updatedAt time.Time
	invalid   bool
	existed   bool
}

func (s Snapshot) Key() Key { return s.key }

// Value returns the captured value; nil when the entry did not exist.
func (s Snapshot) Value() interface{} { return s.value }

func New(logger *logrus.Logger) *Store {
	s := &Store{
		ops:    make(chan func(map[Key]*entry)),
		stop:   make(chan struct{}),
		logger: logger,
	}
	go s.run()
	return s
}

func (s *Store) run() {
	state := make(map[Key]*entry)
	for {
		select {
		case <-s.stop:
			return
		case op := <-s.ops:
			op(state)
		}
	}
}

// do submits an operation to the owning goroutine and waits for it.
func (s *Store) do(ctx context.Context, fn func(map[Key]*entry)) error {
	done := make(chan struct{})
	wrapped := func(state map[Key]*entry) {
		fn(state)
		close(done)
	}

	select {
	case s.ops <- wrapped:
	case <-s.stop:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lookup returns the cached value when it is present, not invalidated,
// and younger than staleTime.
func (s *Store) Lookup(ctx context.Context, key Key, staleTime time.Duration) (interface{}, bool) {
	var (
		value interface{}
		ok    bool
	)
	err := s.do(ctx, func(state map[Key]*entry) {
		e, exists := state[key]
		if !exists || e.invalid {
			return
		}
		if staleTime > 0 && time.Since(e.updatedAt) > staleTime {
			return
		}
		value, ok = e.value, true
	})
	if err != nil {
		return nil, false
	}

	if ok {
		metrics.IncrementCounter("cache_hits_total", map[string]string{"family": string(key.Family())}, "Cache hits")
	} else {
		metrics.IncrementCounter("cache_misses_total", map[string]string{"family": string(key.Family())}, "Cache misses")
	}
	return value, ok
}

// Peek returns the cached value regardless of freshness or invalidation.
// Used for targeted patches and as a fallback while a refetch is pending.
func (s *Store) Peek(ctx context.Context, key Key) (interface{}, bool) {
	var (
		value interface{}
		ok    bool
	)
	s.do(ctx, func(state map[Key]*entry) {
		if e, exists := state[key]; exists {
			value, ok = e.value, true
		}
	})
	return value, ok
}

// Put stores a confirmed value and clears any invalidation mark.
func (s *Store) Put(ctx context.Context, key Key, value interface{}) {
	s.do(ctx, func(state map[Key]*entry) {
		s.seq++
		state[key] = &entry{value: value, updatedAt: time.Now(), gen: s.seq}
	})
}

// Generation returns the entry's mutation generation, zero when absent.
// A read-through fetch captures it before calling the backend and hands
// it to PutIfUnchanged so a result that a mutation overlapped is thrown
// away instead of clobbering the mutation's view.
func (s *Store) Generation(ctx context.Context, key Key) uint64 {
	var gen uint64
	s.do(ctx, func(state map[Key]*entry) {
		if e, exists := state[key]; exists {
			gen = e.gen
		}
	})
	return gen
}

// PutIfUnchanged stores value only when the entry's generation still
// matches gen. Returns false when a write landed in between, in which
// case the fetched result is stale and must be discarded.
func (s *Store) PutIfUnchanged(ctx context.Context, key Key, value interface{}, gen uint64) bool {
	var stored bool
	s.do(ctx, func(state map[Key]*entry) {
		current := uint64(0)
		if e, exists := state[key]; exists {
			current = e.gen
		}
		if current != gen {
			return
		}
		s.seq++
		state[key] = &entry{value: value, updatedAt: time.Now(), gen: s.seq}
		stored = true
	})
	if !stored {
		metrics.IncrementCounter("cache_stale_reads_discarded_total",
			map[string]string{"family": string(key.Family())}, "Read results discarded by a concurrent write")
	}
	return stored
}

// Patch applies a targeted transformation to an existing entry. The entry
// keeps its timestamp and invalidation state: a patch is an optimistic
// hint, not a confirmed read. Returns false when the key is absent, in
// which case the next Lookup miss will fetch authoritative data anyway.
func (s *Store) Patch(ctx context.Context, key Key, fn func(interface{}) interface{}) bool {
	var applied bool
	s.do(ctx, func(state map[Key]*entry) {
		if e, exists := state[key]; exists {
			s.seq++
			e.value = fn(e.value)
			e.gen = s.seq
			applied = true
		}
	})
	return applied
}

// Invalidate marks one entry stale so the next Lookup misses.
func (s *Store) Invalidate(ctx context.Context, key Key) {
	s.do(ctx, func(state map[Key]*entry) {
		if e, exists := state[key]; exists {
			s.seq++
			e.invalid = true
			e.gen = s.seq
		}
	})
}

// InvalidateFamily marks every entry in a key family stale.
func (s *Store) InvalidateFamily(ctx context.Context, family Key) {
	s.do(ctx, func(state map[Key]*entry) {
		for k, e := range state {
			if k.InFamily(family) {
				s.seq++
				e.invalid = true
				e.gen = s.seq
			}
		}
	})
}

// TakeSnapshot captures the entry's current state.
func (s *Store) TakeSnapshot(ctx context.Context, key Key) Snapshot {
	snap := Snapshot{key: key}
	s.do(ctx, func(state map[Key]*entry) {
		if e, exists := state[key]; exists {
			snap.value = e.value
			snap.updatedAt = e.updatedAt
			snap.invalid = e.invalid
			snap.existed = true
		}
	})
	return snap
}

// Restore rolls an entry back to a previously captured snapshot.
func (s *Store) Restore(ctx context.Context, snap Snapshot) {
	s.do(ctx, func(state map[Key]*entry) {
		if !snap.existed {
			delete(state, snap.key)
			return
		}
		s.seq++
		state[snap.key] = &entry{
			value:     snap.value,
			updatedAt: snap.updatedAt,
			invalid:   snap.invalid,
			gen:       s.seq,
		}
	})
}

// Clear drops every entry. Used on sign-out and on forced refresh.
func (s *Store) Clear(ctx context.Context) {
	s.do(ctx, func(state map[Key]*entry) {
		for k := range state {
			delete(state, k)
		}
	})
}

func (s *Store) Close() {
	close(s.stop)
}
