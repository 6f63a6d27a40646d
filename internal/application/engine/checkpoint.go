package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CheckpointKind identifies one of the two human decision gates.
type CheckpointKind string

const (
	CheckpointPurchase CheckpointKind = "purchase"
	CheckpointPayment  CheckpointKind = "payment"
)

type checkpointKey struct {
	id   uuid.UUID
	kind CheckpointKind
}

type pendingCheckpoint struct {
	done       func(value, timedOut bool)
	timeout    *time.Timer
	escalation *time.Timer
}

// Checkpoints is the addressable pending-checkpoint registry. Any
// channel (chat, dashboard, terminal) resolves through the same entry
// point; the first resolution wins and later ones are no-ops.
type Checkpoints struct {
	mu      sync.Mutex
	pending map[checkpointKey]*pendingCheckpoint
}

func NewCheckpoints() *Checkpoints {
	return &Checkpoints{pending: make(map[checkpointKey]*pendingCheckpoint)}
}

// Register arms a checkpoint with a decision timeout and an optional
// earlier escalation callback. Exactly one pending checkpoint per kind
// per conversation.
func (r *Checkpoints) Register(
	id uuid.UUID,
	kind CheckpointKind,
	timeout time.Duration,
	escalateAfter time.Duration,
	onEscalate func(),
	done func(value, timedOut bool),
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := checkpointKey{id: id, kind: kind}
	if _, exists := r.pending[key]; exists {
		return fmt.Errorf("checkpoint %s already pending for %s", kind, id)
	}

	p := &pendingCheckpoint{done: done}
	p.timeout = time.AfterFunc(timeout, func() {
		r.finish(key, false, true)
	})
	if escalateAfter > 0 && onEscalate != nil {
		p.escalation = time.AfterFunc(escalateAfter, onEscalate)
	}
	r.pending[key] = p
	return nil
}

// Resolve settles a pending checkpoint from an external channel.
// Returns false if nothing was pending (already resolved or timed out).
func (r *Checkpoints) Resolve(id uuid.UUID, kind CheckpointKind, value bool) bool {
	return r.finish(checkpointKey{id: id, kind: kind}, value, false)
}

// Pending returns the pending checkpoint kind for a conversation.
func (r *Checkpoints) Pending(id uuid.UUID) (CheckpointKind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kind := range []CheckpointKind{CheckpointPurchase, CheckpointPayment} {
		if _, ok := r.pending[checkpointKey{id: id, kind: kind}]; ok {
			return kind, true
		}
	}
	return "", false
}

// CancelAll drops every pending checkpoint for a conversation without
// invoking its continuation. Used by the finalizers.
func (r *Checkpoints) CancelAll(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kind := range []CheckpointKind{CheckpointPurchase, CheckpointPayment} {
		key := checkpointKey{id: id, kind: kind}
		if p, ok := r.pending[key]; ok {
			stopTimers(p)
			delete(r.pending, key)
		}
	}
}

func (r *Checkpoints) finish(key checkpointKey, value, timedOut bool) bool {
	r.mu.Lock()
	p, ok := r.pending[key]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.pending, key)
	stopTimers(p)
	r.mu.Unlock()

	// Continuation runs outside the registry lock; it re-enters the
	// engine through its own entry point.
	p.done(value, timedOut)
	return true
}

func stopTimers(p *pendingCheckpoint) {
	p.timeout.Stop()
	if p.escalation != nil {
		p.escalation.Stop()
	}
}
