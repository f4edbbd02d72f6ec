package sequence

import "sync/atomic"

// Sequencer generates strictly monotonic ids.
// It is safe for concurrent use.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer whose first id is start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next id.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued id.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}
