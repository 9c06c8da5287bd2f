// Package stream fan-outs per-organization activity events to live SSE
// subscribers. Events never cross organization boundaries; each subscriber is
// keyed by the organization it joined.
package stream

import (
	"context"
	"sync"
	"time"
)

// Event is one item on an organization's live activity feed.
type Event struct {
	Type           string    `json:"type"`
	OrganizationID string    `json:"organization_id"`
	ActorID        string    `json:"actor_id,omitempty"`
	SubjectID      string    `json:"subject_id,omitempty"`
	Title          string    `json:"title,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Event types published today.
const (
	EventAnnouncementCreated = "announcement.created"
	EventSettingsUpdated     = "settings.updated"
)

type subscriber struct {
	orgID string
	ch    chan Event
}

// Stream is an in-process fan-out hub. Slow subscribers drop events rather
// than block publishers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

func New() *Stream {
	return &Stream{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for one organization's events. The channel
// is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context, orgID string) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{orgID: orgID, ch: ch}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to the subscribers of its organization only.
func (s *Stream) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.orgID != evt.OrganizationID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
