package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// followUpTimers holds the cancellable scheduled follow-up task per
// conversation. Each tick re-validates the conversation state before
// acting, so a stale fire after finalization is harmless.
type followUpTimers struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

func newFollowUpTimers() *followUpTimers {
	return &followUpTimers{timers: make(map[uuid.UUID]*time.Timer)}
}

// Schedule arms (or re-arms) the follow-up task for a conversation.
func (f *followUpTimers) Schedule(id uuid.UUID, d time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.timers[id]; ok {
		t.Stop()
	}
	f.timers[id] = time.AfterFunc(d, func() {
		f.clear(id)
		fn()
	})
}

// Stop deregisters the follow-up task for a conversation.
func (f *followUpTimers) Stop(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.timers[id]; ok {
		t.Stop()
		delete(f.timers, id)
	}
}

// StopAll cancels every scheduled follow-up.
func (f *followUpTimers) StopAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, t := range f.timers {
		t.Stop()
		delete(f.timers, id)
	}
}

func (f *followUpTimers) clear(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.timers, id)
}
