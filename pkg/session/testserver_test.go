package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/skyward/dronelink/pkg/securechannel"
	"github.com/skyward/dronelink/pkg/transport"
	"github.com/skyward/dronelink/pkg/wire"
)

// handlerFunc produces the response for one request. A nil response means
// no reply is sent, matching the fire-and-forget subscription actions.
type handlerFunc func(msg wire.Message) any

// droneServer is a scripted stand-in for the control server. It accepts the
// key exchange on its end of a pipe pair, answers requests by action name,
// and can push events at will.
type droneServer struct {
	t *testing.T

	ready chan struct{}

	mu       sync.Mutex
	ch       *securechannel.Channel
	handlers map[string]handlerFunc
	requests []wire.Message
}

func startDroneServer(t *testing.T, tr transport.Transport) *droneServer {
	t.Helper()

	s := &droneServer{
		t:        t,
		ready:    make(chan struct{}),
		handlers: make(map[string]handlerFunc),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ch, err := securechannel.Accept(ctx, tr, securechannel.Config{})
		if err != nil {
			return
		}
		sub := ch.Subscribe()

		s.mu.Lock()
		s.ch = ch
		s.mu.Unlock()
		close(s.ready)

		for msg := range sub.Messages() {
			s.serve(msg)
		}
	}()

	return s
}

// handle installs the handler for one action.
func (s *droneServer) handle(action string, h handlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[action] = h
}

func (s *droneServer) serve(msg wire.Message) {
	var probe struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(msg.Raw, &probe); err != nil {
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, msg)
	h := s.handlers[probe.Action]
	ch := s.ch
	s.mu.Unlock()

	var resp any
	if h != nil {
		resp = h(msg)
	} else {
		switch probe.Action {
		case wire.ActionSubscribeTelemetry, wire.ActionUnsubscribeTelemetry,
			wire.ActionSubscribeVideo, wire.ActionUnsubscribeVideo:
			// Subscription actions have no correlated reply.
			resp = nil
		default:
			resp = map[string]any{}
		}
	}

	if resp != nil {
		if err := ch.Send(resp); err != nil {
			s.t.Logf("server send failed: %v", err)
		}
	}
}

// actions returns the action names received so far, in order.
func (s *droneServer) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for _, msg := range s.requests {
		var probe struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(msg.Raw, &probe); err == nil {
			names = append(names, probe.Action)
		}
	}
	return names
}

// lastRequest decodes the most recent request with the given action into v.
func (s *droneServer) lastRequest(action string, v any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.requests) - 1; i >= 0; i-- {
		var probe struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(s.requests[i].Raw, &probe); err != nil {
			continue
		}
		if probe.Action == action {
			return json.Unmarshal(s.requests[i].Raw, v) == nil
		}
	}
	return false
}

// waitReady blocks until the handshake finished.
func (s *droneServer) waitReady() {
	s.t.Helper()
	select {
	case <-s.ready:
	case <-time.After(5 * time.Second):
		s.t.Fatal("server never became ready")
	}
}

// push sends one event to the client.
func (s *droneServer) push(event string, data any) {
	s.t.Helper()
	s.waitReady()

	raw, err := json.Marshal(data)
	if err != nil {
		s.t.Fatalf("marshal event data: %v", err)
	}
	if err := s.ch.Send(wire.EventEnvelope{Event: event, Data: raw}); err != nil {
		s.t.Fatalf("push %s: %v", event, err)
	}
}

func (s *droneServer) pushTelemetry(z float64) {
	s.push(wire.EventTelemetry, wire.Telemetry{
		Position: wire.Vector3{Z: z},
		Velocity: wire.Vector3{X: 1.5},
	})
}

// grantHandler answers with a fixed token pair.
func grantHandler(access, refresh string) handlerFunc {
	return func(wire.Message) any {
		return wire.TokenGrant{AccessToken: access, RefreshToken: refresh}
	}
}

// errorHandler answers with a server-side error.
func errorHandler(message string) handlerFunc {
	return func(wire.Message) any {
		return map[string]any{"error": message}
	}
}
