// Economy events, kept in a bounded recent buffer and fanned out to live subscribers.
package engine

import (
	"sync"
)

// Event categories.
const (
	CategoryAlliance = "alliance"
	CategoryResource = "resource"
	CategoryTrade    = "trade"
	CategoryTurn     = "turn"
)

const (
	maxRecentEvents = 500
	subscriberQueue = 64
)

// Event is a notable occurrence in the economy.
type Event struct {
	Tick        uint64       `json:"tick"`
	Category    string       `json:"category"`
	Description string       `json:"description"`
	Summary     *TurnSummary `json:"summary,omitempty"` // Set on turn events
}

type eventLog struct {
	mu     sync.Mutex
	limit  int
	recent []Event
	subs   map[int]chan Event
	nextID int
}

func newEventLog(limit int) *eventLog {
	return &eventLog{limit: limit, subs: make(map[int]chan Event)}
}

// publish stores e and fans it out. Subscribers that are not keeping up miss
// events rather than stalling the turn loop.
func (l *eventLog) publish(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.recent = append(l.recent, e)
	// Trim old events to prevent unbounded growth.
	if len(l.recent) > l.limit {
		l.recent = append(l.recent[:0], l.recent[len(l.recent)-l.limit:]...)
	}
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a listener for new events.
func (e *Economy) Subscribe() (int, <-chan Event) {
	l := e.events
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	ch := make(chan Event, subscriberQueue)
	l.subs[l.nextID] = ch
	return l.nextID, ch
}

// Unsubscribe removes a listener and closes its channel.
func (e *Economy) Unsubscribe(id int) {
	l := e.events
	l.mu.Lock()
	defer l.mu.Unlock()

	if ch, ok := l.subs[id]; ok {
		delete(l.subs, id)
		close(ch)
	}
}

// RecentEvents returns up to limit of the latest events, oldest first.
// An empty category matches every event.
func (e *Economy) RecentEvents(limit int, category string) []Event {
	l := e.events
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0, limit)
	for i := len(l.recent) - 1; i >= 0 && len(out) < limit; i-- {
		if category == "" || l.recent[i].Category == category {
			out = append(out, l.recent[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
