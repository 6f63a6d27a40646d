package negotiation

import (
	"time"

	"github.com/google/uuid"
)

// Store is the authoritative in-memory map of conversations. It is a
// dumb container: callers (the engine) serialize access and persist
// changes through the Repository after every mutation.
type Store struct {
	byID map[uuid.UUID]*Conversation
}

func NewStore() *Store {
	return &Store{byID: make(map[uuid.UUID]*Conversation)}
}

// Put inserts or replaces a conversation.
func (s *Store) Put(c *Conversation) {
	s.byID[c.ID] = c
}

// Get returns the conversation by id, or nil.
func (s *Store) Get(id uuid.UUID) *Conversation {
	return s.byID[id]
}

// FindOpenBySeller returns the unique non-terminal conversation for a
// seller, or nil if none exists.
func (s *Store) FindOpenBySeller(sellerID string) *Conversation {
	for _, c := range s.byID {
		if c.SellerID == sellerID && !c.Terminal() {
			return c
		}
	}
	return nil
}

// FindRecentBySellerCategory returns a conversation for the same
// seller and category updated since the given instant. Open
// conversations win over terminal ones.
func (s *Store) FindRecentBySellerCategory(sellerID string, category Category, since time.Time) *Conversation {
	var recent *Conversation
	for _, c := range s.byID {
		if c.SellerID != sellerID || c.Category != category {
			continue
		}
		if c.UpdatedAt.Before(since) {
			continue
		}
		if !c.Terminal() {
			return c
		}
		if recent == nil || c.UpdatedAt.After(recent.UpdatedAt) {
			recent = c
		}
	}
	return recent
}

// ListOpen returns all non-terminal conversations.
func (s *Store) ListOpen() []*Conversation {
	var out []*Conversation
	for _, c := range s.byID {
		if !c.Terminal() {
			out = append(out, c)
		}
	}
	return out
}

// ListVisible returns open conversations plus terminal ones inside the
// post-completion visibility window.
func (s *Store) ListVisible(now time.Time, window time.Duration) []*Conversation {
	var out []*Conversation
	for _, c := range s.byID {
		if c.VisibleAt(now, window) {
			out = append(out, c)
		}
	}
	return out
}
