package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"
)

// DefaultHandshakeTimeout bounds the WebSocket opening handshake.
const DefaultHandshakeTimeout = 15 * time.Second

// WebSocketConfig configures a WebSocket transport.
type WebSocketConfig struct {
	// URL is the control server endpoint (wss://...). Required.
	URL string

	// TLSConfig is an optional TLS client configuration.
	TLSConfig *tls.Config

	// InsecureSkipVerify disables certificate validation. Development
	// configurations only; production must validate certificates.
	InsecureSkipVerify bool

	// HandshakeTimeout bounds the opening handshake
	// (default: DefaultHandshakeTimeout).
	HandshakeTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// WebSocket is a Transport over one WebSocket connection.
// Each WebSocket text message is one raw channel message.
type WebSocket struct {
	conn *websocket.Conn
	hub  *hub
	log  logging.LeveledLogger

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// DialWebSocket connects to the configured endpoint and starts the read pump.
func DialWebSocket(ctx context.Context, config WebSocketConfig) (*WebSocket, error) {
	if config.URL == "" {
		return nil, ErrNoURL
	}

	tlsConfig := config.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{}
	} else {
		tlsConfig = tlsConfig.Clone()
	}
	if config.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	timeout := config.HandshakeTimeout
	if timeout == 0 {
		timeout = DefaultHandshakeTimeout
	}

	dialer := websocket.Dialer{
		TLSClientConfig:  tlsConfig,
		HandshakeTimeout: timeout,
	}

	conn, _, err := dialer.DialContext(ctx, config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", config.URL, err)
	}

	t := &WebSocket{conn: conn}
	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("transport")
	}
	t.hub = newHub(t.log)

	if t.log != nil {
		t.log.Infof("connected to %s", config.URL)
	}

	go t.readPump()

	return t, nil
}

// Send transmits one raw message as a WebSocket text message.
func (t *WebSocket) Send(data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.mu.Unlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Subscribe registers a new broadcast receiver.
func (t *WebSocket) Subscribe() *Receiver {
	return t.hub.subscribe()
}

// Close shuts the connection down and terminates all receivers.
func (t *WebSocket) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if t.log != nil {
		t.log.Info("closing connection")
	}

	// Best effort close frame; the server may already be gone.
	t.writeMu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()

	err := t.conn.Close()
	t.hub.close()
	return err
}

// readPump delivers every inbound message to the hub until the connection
// fails or is closed.
func (t *WebSocket) readPump() {
	defer t.hub.close()

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed && t.log != nil {
				t.log.Warnf("read failed: %v", err)
			}
			return
		}
		t.hub.publish(data)
	}
}

// Verify WebSocket implements Transport.
var _ Transport = (*WebSocket)(nil)
