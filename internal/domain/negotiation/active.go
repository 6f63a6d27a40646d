package negotiation

import (
	"sync"

	"github.com/google/uuid"
)

// ActiveSlot is the singleton marker of the conversation the engine is
// currently conducting. Claim and Release use compare-and-set semantics
// so the invariant is checkable in isolation even though dispatch is
// serialized.
type ActiveSlot struct {
	mu sync.Mutex
	id *uuid.UUID
}

// Claim takes the slot for the given conversation. Returns true if the
// slot was free or already held by the same conversation.
func (s *ActiveSlot) Claim(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == nil {
		v := id
		s.id = &v
		return true
	}
	return *s.id == id
}

// Release frees the slot only if it is held by the given conversation.
func (s *ActiveSlot) Release(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == nil || *s.id != id {
		return false
	}
	s.id = nil
	return true
}

// Current returns the holder, if any.
func (s *ActiveSlot) Current() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == nil {
		return uuid.Nil, false
	}
	return *s.id, true
}

// HeldBy reports whether the slot is held by the given conversation.
func (s *ActiveSlot) HeldBy(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id != nil && *s.id == id
}
