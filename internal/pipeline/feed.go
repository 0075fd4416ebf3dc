package pipeline

import (
	"sync"
	"time"
)

// TurnEvent is one persisted turn, broadcast to live feed subscribers.
type TurnEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Concluded bool      `json:"concluded"`
	At        time.Time `json:"at"`
}

const EventTypeTurn = "turn"

// Feed fans persisted-turn events out to websocket subscribers. Slow
// subscribers are skipped, never blocked on; the transcript store is the
// source of truth, the feed is best-effort.
type Feed struct {
	mu   sync.RWMutex
	subs map[string]map[chan TurnEvent]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[string]map[chan TurnEvent]struct{})}
}

// Subscribe registers a listener for one session. The returned cancel
// func unregisters and closes the channel.
func (f *Feed) Subscribe(sessionID string) (<-chan TurnEvent, func()) {
	ch := make(chan TurnEvent, 64)

	f.mu.Lock()
	if f.subs[sessionID] == nil {
		f.subs[sessionID] = make(map[chan TurnEvent]struct{})
	}
	f.subs[sessionID][ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[sessionID], ch)
			if len(f.subs[sessionID]) == 0 {
				delete(f.subs, sessionID)
			}
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (f *Feed) Publish(evt TurnEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subs[evt.SessionID] {
		select {
		case ch <- evt:
		default:
			// Drop on a saturated subscriber.
		}
	}
}
