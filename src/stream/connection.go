package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"vessel-tracker/src/interfaces"
	"vessel-tracker/src/logger"
	"vessel-tracker/src/models"
)

// -----------------------------------------------------------------------------
// Connection drives the single upstream websocket through
// Disconnected -> Connecting -> Open -> Closed and back, reconnecting with
// exponential backoff on any abnormal closure. Parsed reports are handed to
// the sink one at a time, in arrival order; a sink failure never feeds back
// into connection state.
// -----------------------------------------------------------------------------

type Connection struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	transport interfaces.IStreamTransport
	sink      interfaces.IReportSink

	mu            sync.Mutex
	state         models.ConnectionState
	attempts      int
	lastMessageAt time.Time
	conn          interfaces.IStreamConn
	monitor       *inactivityMonitor
	stopPing      chan struct{}

	backoff backoffScheduler

	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
}

// -----------------------------------------------------------------------------

func NewConnection(cfg *models.MConfig, transport interfaces.IStreamTransport, sink interfaces.IReportSink, log *logger.Logger) *Connection {
	return &Connection{
		Config:    cfg,
		Logger:    log,
		transport: transport,
		sink:      sink,
		state:     models.StateDisconnected,
	}
}

// -----------------------------------------------------------------------------

// Start kicks off the first connection attempt.
func (c *Connection) Start(parentCtx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("stream connection is already running")
	}
	c.isRunning = true
	c.ctx, c.cancel = context.WithCancel(parentCtx)
	c.mu.Unlock()

	go c.connect()
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels any pending reconnect and closes the live connection.
func (c *Connection) Stop() {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = false
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.backoff.Stop()
	c.teardown(models.StateDisconnected)
	c.Logger.Info("Stream connection stopped")
}

// -----------------------------------------------------------------------------
// Status accessors (read by the HTTP status server)
// -----------------------------------------------------------------------------

func (c *Connection) State() models.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Connection) LastMessageAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMessageAt
}

// -----------------------------------------------------------------------------
// State machine
// -----------------------------------------------------------------------------

func (c *Connection) connect() {
	if c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	c.state = models.StateConnecting
	c.mu.Unlock()

	c.Logger.Info("Connecting to stream %s", c.Config.Stream.URL)

	conn, err := c.transport.Dial(c.ctx, c.Config.Stream.URL)
	if err != nil {
		c.Logger.Error("Stream dial failed: %v", err)
		c.mu.Lock()
		c.state = models.StateClosed
		c.mu.Unlock()
		c.scheduleReconnect()
		return
	}

	c.onOpen(conn)
	c.readLoop(conn)
}

// -----------------------------------------------------------------------------

// onOpen wires up everything that lives for the duration of one Open state:
// keepalive pings, the inactivity monitor and the one-shot subscription.
func (c *Connection) onOpen(conn interfaces.IStreamConn) {
	interval := time.Duration(c.Config.Stream.InactivityMinutes) * time.Minute

	c.mu.Lock()
	c.conn = conn
	c.state = models.StateOpen
	c.attempts = 0
	c.lastMessageAt = time.Now()
	c.stopPing = make(chan struct{})
	c.monitor = newInactivityMonitor(interval, c.Logger)
	monitor := c.monitor
	stopPing := c.stopPing
	c.mu.Unlock()

	c.Logger.Info("Stream connection open")

	go c.keepaliveLoop(conn, stopPing)

	if c.Config.Stream.APIKey == "" {
		c.Logger.WarningOnce("stream-api-key", "No stream API key configured; subscription not sent")
	} else {
		sub := models.NewSubscription(c.Config.Stream.APIKey, c.Config.Stream.MMSI)
		if err := conn.WriteJSON(sub); err != nil {
			c.Logger.Error("Failed to send subscription: %v", err)
		} else {
			c.Logger.Info("Subscribed to position reports for MMSI %s", c.Config.Stream.MMSI)
			monitor.Reset()
		}
	}

	monitor.Start()
}

// -----------------------------------------------------------------------------

func (c *Connection) readLoop(conn interfaces.IStreamConn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				c.teardown(models.StateDisconnected)
				return
			}
			c.Logger.Warning("Stream closed: %v", err)
			c.teardown(models.StateClosed)
			c.scheduleReconnect()
			return
		}
		c.handleMessage(data)
	}
}

// -----------------------------------------------------------------------------

// handleMessage parses one inbound frame. Malformed payloads are logged and
// dropped; they never touch connection state. Valid reports reset the
// inactivity counter and go to the sink, awaited but isolated.
func (c *Connection) handleMessage(data []byte) {
	var msg models.MStreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.Logger.Warning("Discarding malformed stream message: %v", err)
		return
	}

	raw := msg.Message.PositionReport
	if raw == nil || raw.Latitude == nil || raw.Longitude == nil {
		c.Logger.Warning("Discarding stream message without position report payload")
		return
	}

	c.mu.Lock()
	c.lastMessageAt = time.Now()
	monitor := c.monitor
	c.mu.Unlock()

	if monitor != nil {
		monitor.Reset()
	}

	report := models.MPositionReport{
		MMSI:               c.Config.Stream.MMSI,
		Latitude:           *raw.Latitude,
		Longitude:          *raw.Longitude,
		SpeedOverGround:    raw.Sog,
		NavigationalStatus: raw.NavigationalStatus,
		RateOfTurn:         raw.RateOfTurn,
		TrueHeading:        raw.TrueHeading,
		ObservedAt:         time.Now().UTC(),
	}

	if c.sink == nil {
		return
	}
	if err := c.sink.HandlePositionReport(c.ctx, report); err != nil {
		c.Logger.Error("Persistence failed for report at %.5f,%.5f: %v", report.Latitude, report.Longitude, err)
	}
}

// -----------------------------------------------------------------------------

// teardown stops the monitor and keepalive loop and closes the transport.
// Idempotent: a second close signal finds nothing left to release.
func (c *Connection) teardown(next models.ConnectionState) {
	c.mu.Lock()
	c.state = next
	conn := c.conn
	monitor := c.monitor
	stopPing := c.stopPing
	c.conn = nil
	c.monitor = nil
	c.stopPing = nil
	c.mu.Unlock()

	if monitor != nil {
		monitor.Stop()
	}
	if stopPing != nil {
		close(stopPing)
	}
	if conn != nil {
		conn.Close()
	}
}

// -----------------------------------------------------------------------------

// scheduleReconnect arranges the next Connecting transition. The backoff
// scheduler guarantees at most one pending timer; the attempt counter only
// moves when a timer was actually placed.
func (c *Connection) scheduleReconnect() {
	if c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	attempts := c.attempts
	c.mu.Unlock()

	delay := ReconnectDelay(attempts)
	if c.backoff.Schedule(delay, c.connect) {
		c.mu.Lock()
		c.attempts++
		c.mu.Unlock()
		c.Logger.Info("Reconnect attempt %d scheduled in %v", attempts+1, delay)
	}
}

// -----------------------------------------------------------------------------

func (c *Connection) keepaliveLoop(conn interfaces.IStreamConn, stop chan struct{}) {
	ticker := time.NewTicker(time.Duration(c.Config.Stream.KeepaliveSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				// The read loop observes the broken connection and reconnects.
				c.Logger.Warning("Keepalive ping failed: %v", err)
				return
			}
		}
	}
}
