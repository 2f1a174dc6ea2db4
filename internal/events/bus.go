// Package events fans out job status changes to live subscribers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one status change of a job.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	JobID     uuid.UUID `json:"job_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
}

const subscriberBuffer = 8

// Bus delivers events to per-job subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu      sync.Mutex
	nextSeq int64
	subs    map[uuid.UUID]map[chan Event]struct{}
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uuid.UUID]map[chan Event]struct{})}
}

// Publish assigns sequence and timestamp and delivers the event.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	for ch := range b.subs[event.JobID] {
		select {
		case ch <- event:
		default:
		}
	}
	return event
}

// Subscribe returns a channel of events for jobID and a cancel func that
// must be called to release it. The channel is closed by cancel.
func (b *Bus) Subscribe(jobID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[chan Event]struct{})
	}
	b.subs[jobID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[jobID], ch)
			if len(b.subs[jobID]) == 0 {
				delete(b.subs, jobID)
			}
			close(ch)
		})
	}
}
