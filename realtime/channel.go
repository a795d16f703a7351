package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
	"github.com/tavolo/posdata/utils"
)

type ChannelState int32

const (
	ChannelDisconnected ChannelState = iota
	ChannelConnecting
	ChannelConnected
	ChannelStopped
)

type channelSettings struct {
	url          string
	backoffBase  time.Duration
	backoffCap   time.Duration
	maxAttempts  int
	pingInterval time.Duration
	pongWait     time.Duration
	writeWait    time.Duration
}

// Channel is the reconnecting push client. Inbound deltas go straight to
// the applier; the fetch path is never involved. After the attempt budget
// is spent, reconnection stops until an external trigger (typically the
// next online transition) restarts it.
type Channel struct {
	ctx    context.Context
	cancel context.CancelFunc

	logger   types.Logger
	health   types.HealthManager
	applier  types.DeltaApplier
	settings channelSettings

	conn   *websocket.Conn
	connMu sync.Mutex

	reconnectCh chan struct{}
	state       atomic.Value
	attempts    int32
	running     int32
}

func NewChannel(
	ctx context.Context,
	logger types.Logger,
	health types.HealthManager,
	applier types.DeltaApplier,
	config *types.RealtimeConfig,
) (*Channel, error) {
	if config.URL == "" {
		return nil, types.Errorf(types.ErrChannelConfigInvalid, "realtime url is empty")
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	channelCtx, cancel := context.WithCancel(ctx)

	c := &Channel{
		ctx:     channelCtx,
		cancel:  cancel,
		logger:  logger,
		health:  health,
		applier: applier,
		settings: channelSettings{
			url:          config.URL,
			backoffBase:  utils.ParseDurationOr(config.BackoffBase, time.Second),
			backoffCap:   utils.ParseDurationOr(config.BackoffCap, 30*time.Second),
			maxAttempts:  maxAttempts,
			pingInterval: utils.ParseDurationOr(config.PingInterval, 54*time.Second),
			pongWait:     utils.ParseDurationOr(config.PongWait, 60*time.Second),
			writeWait:    utils.ParseDurationOr(config.WriteWait, 10*time.Second),
		},
		reconnectCh: make(chan struct{}, 1),
	}

	c.state.Store(ChannelDisconnected)

	return c, nil
}

func (c *Channel) Start() error {
	if !atomic.CompareAndSwapInt32(&c.running, 0, 1) {
		return types.ErrAlreadyRunning
	}

	go c.run()

	c.logger.Info("Realtime channel started", zap.String("url", c.settings.url))
	return nil
}

func (c *Channel) Stop() error {
	if !atomic.CompareAndSwapInt32(&c.running, 1, 0) {
		return types.ErrNotRunning
	}

	c.cancel()
	c.state.Store(ChannelStopped)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.logger.Info("Realtime channel stopped")
	return nil
}

func (c *Channel) IsRunning() bool {
	return atomic.LoadInt32(&c.running) == 1
}

func (c *Channel) IsConnected() bool {
	return c.state.Load().(ChannelState) == ChannelConnected
}

// TriggerReconnect restarts the connect loop after the attempt budget was
// spent, and wakes a backoff sleep early otherwise.
func (c *Channel) TriggerReconnect() {
	select {
	case c.reconnectCh <- struct{}{}:
	default:
	}
}

// Backoff computes the reconnect delay for one attempt:
// min(base * 2^attempt, cap).
func Backoff(base, capDelay time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= capDelay || delay <= 0 {
			return capDelay
		}
	}

	if delay > capDelay {
		return capDelay
	}
	return delay
}

func (c *Channel) run() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		attempt := int(atomic.LoadInt32(&c.attempts))
		if attempt > c.settings.maxAttempts {
			c.waitForTrigger()
			continue
		}

		if attempt > 0 {
			delay := Backoff(c.settings.backoffBase, c.settings.backoffCap, attempt-1)
			c.logger.Debug("Realtime reconnect backoff",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))

			select {
			case <-c.ctx.Done():
				return
			case <-c.reconnectCh:
			case <-time.After(delay):
			}
		}

		c.state.Store(ChannelConnecting)

		conn, err := c.dial()
		if err != nil {
			atomic.AddInt32(&c.attempts, 1)
			c.state.Store(ChannelDisconnected)
			c.reportHealth(types.HealthDegraded, "disconnected")
			c.logger.Warn("Realtime connection failed",
				zap.Int32("attempt", atomic.LoadInt32(&c.attempts)),
				zap.Error(err))
			continue
		}

		// A successful connection resets the attempt counter.
		atomic.StoreInt32(&c.attempts, 0)
		c.state.Store(ChannelConnected)
		c.reportHealth(types.HealthOK, "")
		c.logger.Info("Realtime channel connected")

		c.readPump(conn)

		c.state.Store(ChannelDisconnected)
		c.reportHealth(types.HealthDegraded, "disconnected")
		atomic.AddInt32(&c.attempts, 1)
	}
}

func (c *Channel) waitForTrigger() {
	c.reportHealth(types.HealthDegraded, "reconnect attempts exhausted")
	c.logger.Warn("Realtime reconnect attempts exhausted, waiting for external trigger")

	select {
	case <-c.ctx.Done():
	case <-c.reconnectCh:
		atomic.StoreInt32(&c.attempts, 0)
	}
}

func (c *Channel) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(c.ctx, c.settings.url, nil)
	if err != nil {
		return nil, err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	return conn, nil
}

// readPump consumes messages until the connection dies. Malformed messages
// are skipped; the connection survives them.
func (c *Channel) readPump(conn *websocket.Conn) {
	defer func() {
		c.connMu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.connMu.Unlock()
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(c.settings.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.settings.pongWait))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.pingLoop(conn, pingDone)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("Realtime connection lost", zap.Error(err))
			}
			return
		}

		var msg types.UpdateMessage
		if err := utils.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
			c.logger.Warn("Skipping malformed realtime message", zap.Error(err))
			continue
		}

		if err := c.applier.Apply(&msg); err != nil {
			c.logger.Warn("Realtime update not applied",
				zap.String("type", msg.Type),
				zap.Error(err))
		}
	}
}

func (c *Channel) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.settings.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.settings.writeWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (c *Channel) reportHealth(status types.HealthStatus, detail string) {
	if c.health != nil {
		c.health.SetStatus("realtime", status, detail)
	}
}
