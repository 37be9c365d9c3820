package core

import "fmt"

// Sequence hands out monotonically increasing identifiers and tracks how many
// of them are still owned. A reset starts a new generation so stale owners
// can be told apart from fresh ones.
type Sequence struct {
	next       uint64
	live       uint64
	generation uint32
	limit      uint64
}

// NewSequence creates a sequence. A limit of 0 means unbounded.
func NewSequence(limit uint64) *Sequence {
	return &Sequence{limit: limit}
}

func (s *Sequence) Acquire() (uint64, error) {
	if s.limit != 0 && s.next >= s.limit {
		return 0, fmt.Errorf("identifier sequence exhausted at %d", s.limit)
	}
	id := s.next
	s.next++
	s.live++
	return id, nil
}

func (s *Sequence) Release() error {
	if s.live == 0 {
		return fmt.Errorf("identifier sequence release called with no live identifiers. Nothing was done")
	}
	s.live--
	return nil
}

// Reset rewinds the counter to 0 and bumps the generation. It refuses to run
// while identifiers are still owned.
func (s *Sequence) Reset() error {
	if s.live != 0 {
		return fmt.Errorf("identifier sequence reset with %d live identifiers", s.live)
	}
	s.next = 0
	s.generation++
	return nil
}

func (s *Sequence) Live() uint64 {
	return s.live
}

func (s *Sequence) Next() uint64 {
	return s.next
}

func (s *Sequence) Generation() uint32 {
	return s.generation
}
