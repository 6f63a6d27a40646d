package engine

import (
	"sync"

	"github.com/google/uuid"
)

// ImageBuffer reconciles coupon images that arrive before the state
// machine is ready for them. Held images are consumed exactly once;
// the seen log keeps every image observed during a conversation.
type ImageBuffer struct {
	mu      sync.Mutex
	pending map[uuid.UUID][][]byte
	seen    map[uuid.UUID][][]byte
}

func NewImageBuffer() *ImageBuffer {
	return &ImageBuffer{
		pending: make(map[uuid.UUID][][]byte),
		seen:    make(map[uuid.UUID][][]byte),
	}
}

// Observe records an image in the cumulative per-conversation log.
func (b *ImageBuffer) Observe(id uuid.UUID, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seen[id] = append(b.seen[id], data)
}

// Hold parks an image that arrived ahead of the expected state.
func (b *ImageBuffer) Hold(id uuid.UUID, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[id] = append(b.pending[id], data)
}

// Take consumes the oldest held image for a conversation.
func (b *ImageBuffer) Take(id uuid.UUID) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	imgs := b.pending[id]
	if len(imgs) == 0 {
		return nil, false
	}
	data := imgs[0]
	if len(imgs) == 1 {
		delete(b.pending, id)
	} else {
		b.pending[id] = imgs[1:]
	}
	return data, true
}

// HasPending reports whether a held image is waiting.
func (b *ImageBuffer) HasPending(id uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending[id]) > 0
}

// Seen returns how many images were observed for a conversation.
func (b *ImageBuffer) Seen(id uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.seen[id])
}

// Clear drops all held and logged images for a conversation.
func (b *ImageBuffer) Clear(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, id)
	delete(b.seen, id)
}
