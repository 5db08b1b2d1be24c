package tap

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kagwave/vision-middleware/bus"
	"github.com/kagwave/vision-middleware/errors"
	"github.com/kagwave/vision-middleware/metric"
	"github.com/kagwave/vision-middleware/pkg/buffer"
)

// DefaultReplay is how many recent events a newly connected client
// receives before live traffic.
const DefaultReplay = 16

const (
	defaultPingInterval = 30 * time.Second
	defaultWriteWait    = 10 * time.Second

	// The read deadline must outlive the ping interval so a responsive
	// client always refreshes it with a pong in time.
	defaultPongWait = 60 * time.Second
)

// Subscriber is the NATS surface the tap consumes: a core subscription to
// the fused subject space.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
}

// Config configures the event tap.
type Config struct {
	// Subject to subscribe, default bus.FusedWildcard.
	Subject string

	// Replay is the ring size replayed to new clients, default
	// DefaultReplay.
	Replay int

	// PingInterval between keepalive pings, default 30s.
	PingInterval time.Duration

	// WriteWait bounds each client write. A client that cannot drain a
	// frame within it is dropped.
	WriteWait time.Duration

	Logger   *slog.Logger
	Registry *metric.MetricsRegistry
}

// Tap broadcasts combined events to WebSocket subscribers. Delivery is
// at-most-once: the tap is a live ops view, never part of the join path,
// and a slow client is dropped rather than backpressuring the bus.
//
// The tap owns no HTTP server. Handler() returns the upgrade handler and
// the listener mounts it.
type Tap struct {
	client  Subscriber
	cfg     Config
	logger  *slog.Logger
	metrics *tapMetrics

	upgrader websocket.Upgrader

	// recent keeps the newest events for replay; DropOldest keeps writes
	// from ever blocking the broadcast path.
	recent buffer.Buffer[[]byte]

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*tapClient

	// lifecycleMu serializes Start and Stop
	lifecycleMu sync.Mutex

	mu       sync.RWMutex
	running  bool
	shutdown chan struct{}
	wg       *sync.WaitGroup
}

// tapClient is one connected WebSocket subscriber.
type tapClient struct {
	conn *websocket.Conn

	// writeMu serializes writes; gorilla/websocket allows one writer
	writeMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewTap creates the tap over a core NATS subscriber.
func NewTap(client Subscriber, cfg Config) (*Tap, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "tap", "NewTap", "subscriber cannot be nil")
	}
	if cfg.Subject == "" {
		cfg.Subject = bus.FusedWildcard
	}
	if cfg.Replay <= 0 {
		cfg.Replay = DefaultReplay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newTapMetrics(cfg.Registry)
	if err != nil {
		logger.Warn("tap metrics disabled", "error", err)
	}

	recent, err := buffer.NewCircularBuffer[[]byte](cfg.Replay,
		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
	)
	if err != nil {
		return nil, errors.WrapFatal(err, "tap", "NewTap", "create replay buffer")
	}

	return &Tap{
		client:  client,
		cfg:     cfg,
		logger:  logger.With("component", "tap"),
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		recent:  recent,
		clients: make(map[*websocket.Conn]*tapClient),
	}, nil
}

// Name implements the subsystem interface.
func (t *Tap) Name() string { return "tap" }

// Start subscribes to the fused subjects and begins keepalive pings.
// Idempotent.
func (t *Tap) Start(ctx context.Context) error {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.shutdown = make(chan struct{})
	t.wg = &sync.WaitGroup{}
	t.running = true
	shutdown := t.shutdown
	wg := t.wg
	t.mu.Unlock()

	if err := t.client.Subscribe(ctx, t.cfg.Subject, t.handleEvent); err != nil {
		t.mu.Lock()
		t.running = false
		close(t.shutdown)
		t.shutdown = nil
		t.wg = nil
		t.mu.Unlock()
		return errors.WrapTransient(err, "Tap", "Start", "subscribe to "+t.cfg.Subject)
	}

	wg.Add(1)
	go t.maintainClients(shutdown, wg)

	t.logger.Info("tap started", "subject", t.cfg.Subject, "replay", t.cfg.Replay)
	return nil
}

// Stop disconnects every client and waits for the tap's goroutines within
// the timeout. The NATS subscription stays with the client connection;
// events arriving after Stop are discarded. Idempotent.
func (t *Tap) Stop(timeout time.Duration) error {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	close(t.shutdown)
	t.shutdown = nil
	wg := t.wg
	t.wg = nil
	t.mu.Unlock()

	t.closeAllClients()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.logger.Warn("tap goroutines did not exit within timeout", "timeout", timeout)
		return errors.WrapTransient(errors.ErrMaxRetriesExceeded, "Tap", "Stop", "wait for client goroutines")
	}

	t.logger.Info("tap stopped")
	return nil
}

// Connected returns the number of connected clients.
func (t *Tap) Connected() int {
	t.clientsMu.RLock()
	defer t.clientsMu.RUnlock()
	return len(t.clients)
}

// Handler returns the WebSocket upgrade handler for the listener to
// mount. Upgrades are refused until Start.
func (t *Tap) Handler() http.Handler {
	return http.HandlerFunc(t.handleWebSocket)
}

func (t *Tap) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	t.mu.RLock()
	running := t.running
	wg := t.wg
	shutdown := t.shutdown
	if running {
		// Register under the state lock so Stop either sees this client's
		// goroutine in the wait group or refuses the upgrade.
		wg.Add(1)
	}
	t.mu.RUnlock()

	if !running {
		http.Error(w, "event tap not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wg.Done()
		t.logger.Debug("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := &tapClient{conn: conn}

	t.clientsMu.Lock()
	t.clients[conn] = client
	connected := len(t.clients)
	t.clientsMu.Unlock()

	// A Stop racing this upgrade flips running before it sweeps the client
	// map; re-checking after registration means either the sweep sees this
	// client or this check does.
	t.mu.RLock()
	stillRunning := t.running
	t.mu.RUnlock()
	if !stillRunning {
		t.removeClient(client, "shutdown")
		wg.Done()
		return
	}

	t.metrics.recordConnect(connected)

	t.logger.Debug("tap client connected", "remote", r.RemoteAddr, "connected", connected)

	t.replayRecent(client)

	go t.readLoop(client, shutdown, wg)
}

// replayRecent sends the buffered events to a new client, oldest first.
// The client's write lock is held across the whole replay so live
// broadcasts cannot interleave with it.
func (t *Tap) replayRecent(client *tapClient) {
	events := t.recent.Snapshot()
	if len(events) == 0 {
		return
	}

	client.writeMu.Lock()
	defer client.writeMu.Unlock()

	for _, event := range events {
		_ = client.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, event); err != nil {
			t.removeClient(client, "replay_write")
			return
		}
	}
	t.metrics.recordReplayed(len(events))
}

// readLoop drains control frames from one client. Subscribers send no
// data; any read error means the client went away.
func (t *Tap) readLoop(client *tapClient, shutdown <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	defer t.removeClient(client, "read")

	_ = client.conn.SetReadDeadline(time.Now().Add(defaultPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(defaultPongWait))
	})

	for {
		select {
		case <-shutdown:
			return
		default:
		}

		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// handleEvent receives one combined event from the bus and fans it out.
func (t *Tap) handleEvent(_ context.Context, data []byte) {
	t.mu.RLock()
	running := t.running
	t.mu.RUnlock()
	if !running {
		return
	}

	// The subscription owns data's backing array only for this call.
	event := make([]byte, len(data))
	copy(event, data)

	t.metrics.recordEvent()
	_ = t.recent.Write(event)

	t.broadcast(event)
}

// broadcast writes one event to every connected client concurrently. A
// client that errors or cannot drain within WriteWait is dropped.
func (t *Tap) broadcast(event []byte) {
	t.clientsMu.RLock()
	snapshot := make([]*tapClient, 0, len(t.clients))
	for _, client := range t.clients {
		if !client.closed.Load() {
			snapshot = append(snapshot, client)
		}
	}
	t.clientsMu.RUnlock()

	var wg sync.WaitGroup
	for _, client := range snapshot {
		wg.Add(1)
		go func(c *tapClient) {
			defer wg.Done()
			if err := t.send(c, event); err != nil {
				t.removeClient(c, "write")
				return
			}
			t.metrics.recordSent()
		}(client)
	}
	wg.Wait()
}

func (t *Tap) send(client *tapClient, data []byte) error {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()

	_ = client.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteWait))
	return client.conn.WriteMessage(websocket.TextMessage, data)
}

// maintainClients pings clients on an interval; a failed ping drops the
// client, and a client that stops answering trips its read deadline.
func (t *Tap) maintainClients(shutdown <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			return
		case <-ticker.C:
			t.pingClients()
		}
	}
}

func (t *Tap) pingClients() {
	t.clientsMu.RLock()
	snapshot := make([]*tapClient, 0, len(t.clients))
	for _, client := range t.clients {
		if !client.closed.Load() {
			snapshot = append(snapshot, client)
		}
	}
	t.clientsMu.RUnlock()

	deadline := time.Now().Add(t.cfg.WriteWait)
	for _, client := range snapshot {
		if err := client.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			t.removeClient(client, "ping")
		}
	}
}

// removeClient drops a client exactly once and closes its connection.
func (t *Tap) removeClient(client *tapClient, reason string) {
	client.closeOnce.Do(func() {
		client.closed.Store(true)

		t.clientsMu.Lock()
		delete(t.clients, client.conn)
		connected := len(t.clients)
		t.clientsMu.Unlock()

		_ = client.conn.Close()
		t.metrics.recordDisconnect(reason, connected)
		t.logger.Debug("tap client disconnected", "reason", reason, "connected", connected)
	})
}

func (t *Tap) closeAllClients() {
	t.clientsMu.RLock()
	snapshot := make([]*tapClient, 0, len(t.clients))
	for _, client := range t.clients {
		snapshot = append(snapshot, client)
	}
	t.clientsMu.RUnlock()

	for _, client := range snapshot {
		client.writeMu.Lock()
		_ = client.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = client.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "service stopping"))
		client.writeMu.Unlock()

		t.removeClient(client, "shutdown")
	}
}
