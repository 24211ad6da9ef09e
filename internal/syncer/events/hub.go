package events

import (
	"errors"
	"strings"
	"sync"
)

// Event types emitted during sync runs.
const (
	TypeProgress         = "progress"
	TypeStatusChanged    = "statusChanged"
	TypeDownloadComplete = "downloadComplete"
	TypeUpdateComplete   = "updateComplete"
	TypeClearComplete    = "clearComplete"
	TypeError            = "error"
)

const (
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16
)

// Event is a single sync progress notification for one tenant guid.
type Event struct {
	Type    string `json:"type"`
	Status  string `json:"status,omitempty"`
	Current int    `json:"current,omitempty"`
	Total   int    `json:"total,omitempty"`
	Records int    `json:"records,omitempty"`
	Message string `json:"message,omitempty"`
}

// Hub fans sync events out to websocket subscribers, keyed by tenant guid.
// Publishing never blocks; slow subscribers drop events.
type Hub struct {
	mu               sync.RWMutex
	streams          map[string]*stream
	bufferSize       int
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	buffer []Event
	subs   map[uint64]chan Event
	nextID uint64
}

type Subscription struct {
	hub  *Hub
	guid string
	id   uint64
	ch   chan Event
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[string]*stream),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

func (h *Hub) Publish(guid string, event Event) {
	if h == nil {
		return
	}
	key := strings.TrimSpace(guid)
	if key == "" {
		return
	}
	h.mu.RLock()
	stream := h.streams[key]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	stream.buffer = append(stream.buffer, event)
	if len(stream.buffer) > h.bufferSize {
		stream.buffer = stream.buffer[len(stream.buffer)-h.bufferSize:]
	}
	subs := make([]chan Event, 0, len(stream.subs))
	for _, ch := range stream.subs {
		subs = append(subs, ch)
	}
	stream.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a subscriber for a guid and returns the recent
// event buffer so late joiners can catch up on an in-flight run.
func (h *Hub) Subscribe(guid string) (*Subscription, []Event, error) {
	if h == nil {
		return nil, nil, errors.New("hub_unavailable")
	}
	key := strings.TrimSpace(guid)
	if key == "" {
		return nil, nil, errors.New("invalid_guid")
	}

	stream := h.ensureStream(key)
	stream.mu.Lock()
	if stream.subs == nil {
		stream.subs = make(map[uint64]chan Event)
	}
	id := stream.nextID
	stream.nextID++
	ch := make(chan Event, h.subscriberBuffer)
	stream.subs[id] = ch
	buffer := append([]Event(nil), stream.buffer...)
	stream.mu.Unlock()

	return &Subscription{
		hub:  h,
		guid: key,
		id:   id,
		ch:   ch,
	}, buffer, nil
}

func (h *Hub) ensureStream(guid string) *stream {
	h.mu.RLock()
	current := h.streams[guid]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.streams[guid]
	if current == nil {
		current = &stream{subs: make(map[uint64]chan Event)}
		h.streams[guid] = current
	}
	return current
}

func (h *Hub) unsubscribe(guid string, id uint64) {
	if h == nil {
		return
	}
	key := strings.TrimSpace(guid)
	if key == "" {
		return
	}

	h.mu.RLock()
	stream := h.streams[key]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	delete(stream.subs, id)
	remaining := len(stream.subs)
	stream.mu.Unlock()
	if remaining != 0 {
		return
	}

	h.mu.Lock()
	current := h.streams[key]
	if current != stream {
		h.mu.Unlock()
		return
	}
	stream.mu.Lock()
	empty := len(stream.subs) == 0
	stream.mu.Unlock()
	if empty {
		delete(h.streams, key)
	}
	h.mu.Unlock()
}

func (s *Subscription) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.guid, s.id)
	})
}
