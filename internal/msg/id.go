package msg

import "sync/atomic"

// IDGenerator supplies the id written by CreateHeader.
type IDGenerator interface {
	NextID() uint16
}

// Sequence hands out increasing ids, wrapping modulo 65536. It is safe for
// concurrent use, so several envelopes built by one producer can share it.
type Sequence struct {
	next atomic.Uint32
}

// NewSequence returns a Sequence whose first id is start.
func NewSequence(start uint16) *Sequence {
	s := &Sequence{}
	s.next.Store(uint32(start))
	return s
}

func (s *Sequence) NextID() uint16 {
	return uint16(s.next.Add(1) - 1)
}

// FixedID always returns the same id. Legacy producers stamp every message
// with 1; use it only to talk to peers that expect that.
type FixedID uint16

func (f FixedID) NextID() uint16 { return uint16(f) }
