package transport

import (
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
)

// pipeReadBuffer is the largest message a pipe endpoint can receive.
const pipeReadBuffer = 1 << 20

// PipeConfig configures a pipe pair.
type PipeConfig struct {
	// ProcessInterval is how often queued messages are delivered
	// (default: 1ms).
	ProcessInterval time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Pipe is an in-memory Transport for tests. A pair of Pipes is joined by a
// pion test bridge; each Send on one side arrives as one message on the
// other. Closing either side tears down the whole pair, matching the
// semantics of losing the underlying connection.
type Pipe struct {
	conn net.Conn
	hub  *hub
	ctl  *pipeController

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// pipeController owns the shared bridge and its delivery goroutine.
type pipeController struct {
	bridge *test.Bridge
	conns  [2]net.Conn
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPipePair creates two connected in-memory transports.
func NewPipePair(config PipeConfig) (*Pipe, *Pipe) {
	interval := config.ProcessInterval
	if interval == 0 {
		interval = time.Millisecond
	}

	ctl := &pipeController{
		bridge: test.NewBridge(),
		stopCh: make(chan struct{}),
	}
	ctl.conns[0] = ctl.bridge.GetConn0()
	ctl.conns[1] = ctl.bridge.GetConn1()

	var log logging.LeveledLogger
	if config.LoggerFactory != nil {
		log = config.LoggerFactory.NewLogger("transport-pipe")
	}

	p0 := &Pipe{conn: ctl.conns[0], hub: newHub(log), ctl: ctl}
	p1 := &Pipe{conn: ctl.conns[1], hub: newHub(log), ctl: ctl}

	ctl.wg.Add(1)
	go func() {
		defer ctl.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctl.stopCh:
				return
			case <-ticker.C:
				ctl.bridge.Tick()
			}
		}
	}()

	go p0.readPump()
	go p1.readPump()

	return p0, p1
}

// Send delivers one message to the peer endpoint.
func (p *Pipe) Send(data []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.mu.Unlock()

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := p.conn.Write(data); err != nil {
		return ErrClosed
	}
	return nil
}

// Subscribe registers a new broadcast receiver.
func (p *Pipe) Subscribe() *Receiver {
	return p.hub.subscribe()
}

// Close tears down both ends of the pair.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.ctl.shutdown()
	p.hub.close()
	return nil
}

func (p *Pipe) readPump() {
	defer p.hub.close()

	buf := make([]byte, pipeReadBuffer)
	for {
		n, err := p.conn.Read(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		p.hub.publish(data)
	}
}

func (c *pipeController) shutdown() {
	c.once.Do(func() {
		close(c.stopCh)
		c.conns[0].Close()
		c.conns[1].Close()
		c.wg.Wait()
	})
}

// Verify Pipe implements Transport.
var _ Transport = (*Pipe)(nil)
