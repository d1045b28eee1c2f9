package blinds

import (
	"sync"
	"sync/atomic"
)

// PositionState is the mutable state behind a Store. It is only ever
// touched inside Store.Update.
type PositionState struct {
	LastPosition   int
	MotionState    MotionState
	TargetPosition int
}

func (p PositionState) snapshot() Snapshot {
	return Snapshot{
		Position:       p.LastPosition,
		State:          p.MotionState,
		TargetPosition: p.TargetPosition,
	}
}

// Store serializes every write to PositionState and publishes lock-free
// snapshots for readers.
//
// Update handlers are called from a single dispatcher goroutine. Bursts of
// commits are coalesced: a handler always sees the latest snapshot, never
// an older one after a newer one.
type Store struct {
	mu    sync.Mutex
	state PositionState
	snap  atomic.Pointer[Snapshot]

	hmu      sync.Mutex
	handlers []UpdateHandler
	dirty    chan struct{}
}

func NewStore() *Store {
	s := &Store{
		state: PositionState{
			LastPosition:   FullOpenPosition,
			MotionState:    Stopped,
			TargetPosition: FullOpenPosition,
		},
		dirty: make(chan struct{}, 1),
	}
	snap := s.state.snapshot()
	s.snap.Store(&snap)

	go s.dispatch()

	return s
}

func (s *Store) Snapshot() Snapshot {
	return *s.snap.Load()
}

func (s *Store) OnUpdate(h UpdateHandler) {
	s.hmu.Lock()
	defer s.hmu.Unlock()

	s.handlers = append(s.handlers, h)
}

// Update applies fn atomically and returns the resulting snapshot.
func (s *Store) Update(fn func(st *PositionState)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.state
	fn(&s.state)
	snap := s.state.snapshot()
	s.snap.Store(&snap)

	if before != s.state {
		select {
		case s.dirty <- struct{}{}:
		default:
		}
	}

	return snap
}

func (s *Store) dispatch() {
	var last Snapshot
	delivered := false

	for range s.dirty {
		snap := s.Snapshot()
		if delivered && snap == last {
			continue
		}
		last, delivered = snap, true

		s.hmu.Lock()
		handlers := append([]UpdateHandler(nil), s.handlers...)
		s.hmu.Unlock()

		for _, h := range handlers {
			h(snap)
		}
	}
}
