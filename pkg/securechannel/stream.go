package securechannel

import (
	"context"
	"sync"

	"github.com/pion/logging"

	"github.com/skyward/dronelink/pkg/wire"
)

// SubscriberBuffer is the per-subscriber message buffer. A subscriber that
// falls this far behind loses messages rather than stalling the decode
// pipeline or the other subscribers.
const SubscriberBuffer = 64

// Subscriber is one consumer's view of the decrypted message stream.
type Subscriber struct {
	ch  chan wire.Message
	hub *streamHub
}

// Messages returns the subscriber's channel. It is closed when the
// subscriber or the channel is closed.
func (s *Subscriber) Messages() <-chan wire.Message {
	return s.ch
}

// Next blocks until one message arrives, the subscriber is closed, or the
// context is canceled.
func (s *Subscriber) Next(ctx context.Context) (wire.Message, error) {
	select {
	case <-ctx.Done():
		return wire.Message{}, ctx.Err()
	case msg, ok := <-s.ch:
		if !ok {
			return wire.Message{}, ErrStreamClosed
		}
		return msg, nil
	}
}

// Close unsubscribes. Other subscribers are unaffected.
func (s *Subscriber) Close() {
	s.hub.remove(s)
}

// streamHub fans decoded messages out to all subscribers.
type streamHub struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	closed      bool
	log         logging.LeveledLogger
}

func newStreamHub(log logging.LeveledLogger) *streamHub {
	return &streamHub{
		subscribers: make(map[*Subscriber]struct{}),
		log:         log,
	}
}

func (h *streamHub) subscribe() *Subscriber {
	s := &Subscriber{
		ch:  make(chan wire.Message, SubscriberBuffer),
		hub: h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		return s
	}
	h.subscribers[s] = struct{}{}
	return s
}

func (h *streamHub) publish(msg wire.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for s := range h.subscribers {
		select {
		case s.ch <- msg:
		default:
			if h.log != nil {
				h.log.Warnf("subscriber buffer full, dropping message (event=%q)", msg.Event)
			}
		}
	}
}

func (h *streamHub) remove(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[s]; !ok {
		return
	}
	delete(h.subscribers, s)
	close(s.ch)
}

func (h *streamHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subscribers {
		delete(h.subscribers, s)
		close(s.ch)
	}
}
