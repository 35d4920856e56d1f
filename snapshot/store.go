package snapshot

import "sync/atomic"

// Store is the single-writer/multi-reader handoff point. The builder loop
// publishes; render and trigger loops read whatever is current without
// waiting.
type Store struct {
	cur atomic.Pointer[WorldSnapshot]
}

func NewStore() *Store { return &Store{} }

// Publish installs ws as the current snapshot.
func (s *Store) Publish(ws *WorldSnapshot) {
	s.cur.Store(ws)
}

// Latest returns the current snapshot, or nil before the first publish or
// after Clear.
func (s *Store) Latest() *WorldSnapshot {
	return s.cur.Load()
}

// Clear drops the current snapshot, used on handle loss so consumers stop
// acting on stale state within one cycle.
func (s *Store) Clear() {
	s.cur.Store(nil)
}
