package notify

import (
	"context"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// Hub fans messages out to in-process subscribers such as websocket
// sessions. A subscriber that falls behind loses messages instead of
// stalling ingestion.
type Hub struct {
	subs   *xsync.Map[uint64, *Subscription]
	nextID atomic.Uint64
}

// Subscription receives the messages published after it was created. C is
// never closed; stop reading once Close returns.
type Subscription struct {
	C       <-chan Message
	ch      chan Message
	id      uint64
	hub     *Hub
	dropped atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{subs: xsync.NewMap[uint64, *Subscription]()}
}

func (h *Hub) Subscribe(buffer int) *Subscription {
	ch := make(chan Message, buffer)
	s := &Subscription{C: ch, ch: ch, id: h.nextID.Add(1), hub: h}
	h.subs.Store(s.id, s)
	return s
}

// Dropped counts messages skipped because the buffer was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

func (s *Subscription) Close() { s.hub.subs.Delete(s.id) }

// Subscribers is the number of open subscriptions.
func (h *Hub) Subscribers() int { return h.subs.Size() }

func (h *Hub) Name() string { return "hub" }

func (h *Hub) Publish(_ context.Context, msg Message) error {
	h.subs.Range(func(_ uint64, s *Subscription) bool {
		select {
		case s.ch <- msg:
		default:
			s.dropped.Add(1)
		}
		return true
	})
	return nil
}

func (h *Hub) Close() error { return nil }
