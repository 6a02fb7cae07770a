// Package transport owns one message-oriented connection to the control
// server. Inbound raw messages fan out to every subscriber (broadcast
// semantics); outbound messages are fire-and-forget. The transport knows
// nothing about framing or encryption.
package transport

import (
	"context"
	"sync"

	"github.com/pion/logging"
)

// ReceiverBuffer is the per-receiver message buffer. A receiver that falls
// this far behind starts losing messages rather than stalling the read pump
// or hiding messages from other receivers.
const ReceiverBuffer = 64

// Transport is one bidirectional message connection.
type Transport interface {
	// Send transmits one raw outbound message.
	Send(data []byte) error

	// Subscribe registers a new broadcast receiver. Every receiver sees
	// every inbound message from the moment it subscribes.
	Subscribe() *Receiver

	// Close releases the connection and terminates all receivers.
	// Close is idempotent.
	Close() error
}

// Receiver is one subscriber's view of the inbound message stream.
type Receiver struct {
	ch  chan []byte
	hub *hub
}

// Messages returns the receiver's message channel. The channel is closed
// when the receiver or the transport is closed.
func (r *Receiver) Messages() <-chan []byte {
	return r.ch
}

// Next blocks until one message arrives, the receiver is closed, or the
// context is canceled.
func (r *Receiver) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-r.ch:
		if !ok {
			return nil, ErrReceiverClosed
		}
		return data, nil
	}
}

// Close unsubscribes the receiver. Other receivers are unaffected.
func (r *Receiver) Close() {
	r.hub.remove(r)
}

// hub fans inbound messages out to all registered receivers.
type hub struct {
	mu        sync.Mutex
	receivers map[*Receiver]struct{}
	closed    bool
	log       logging.LeveledLogger
}

func newHub(log logging.LeveledLogger) *hub {
	return &hub{
		receivers: make(map[*Receiver]struct{}),
		log:       log,
	}
}

func (h *hub) subscribe() *Receiver {
	r := &Receiver{
		ch:  make(chan []byte, ReceiverBuffer),
		hub: h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(r.ch)
		return r
	}
	h.receivers[r] = struct{}{}
	return r
}

// publish delivers one message to every receiver. A receiver with a full
// buffer loses the message; delivery to the others continues.
func (h *hub) publish(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for r := range h.receivers {
		select {
		case r.ch <- data:
		default:
			if h.log != nil {
				h.log.Warnf("receiver buffer full, dropping message (%d bytes)", len(data))
			}
		}
	}
}

func (h *hub) remove(r *Receiver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.receivers[r]; !ok {
		return
	}
	delete(h.receivers, r)
	close(r.ch)
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for r := range h.receivers {
		delete(h.receivers, r)
		close(r.ch)
	}
}
