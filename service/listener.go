package service

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kagwave/vision-middleware/errors"
	"github.com/kagwave/vision-middleware/fusion"
	"github.com/kagwave/vision-middleware/health"
	"github.com/kagwave/vision-middleware/metric"
	"github.com/kagwave/vision-middleware/pkg/security"
	"github.com/kagwave/vision-middleware/pkg/tlsutil"
	"github.com/kagwave/vision-middleware/slotstore"
)

// Lifecycle is the orchestrator view the listener serves: readiness,
// per-subsystem states and aggregated health.
type Lifecycle interface {
	Running() bool
	States() map[string]State
	Health() health.Status
}

// ListenerConfig configures the HTTP/WebSocket listener.
type ListenerConfig struct {
	// Port to bind, default 8080.
	Port int

	// Namespace is the slot namespace the /slots endpoints read, default
	// fusion.DefaultNamespace.
	Namespace string

	// TLS enables HTTPS; supports manual certificates and ACME issuance.
	TLS security.ServerTLSConfig

	// Registry backs the /metrics endpoint. Nil leaves /metrics unmounted.
	Registry *metric.MetricsRegistry

	Logger *slog.Logger
}

// Listener is the service's HTTP surface: liveness and readiness probes,
// aggregated health, subsystem states, Prometheus metrics, slot
// inspection, and the WebSocket event tap.
//
// The listener and the orchestrator reference each other, so wiring is
// two-phase: construct the listener, hand it to the orchestrator, then
// BindLifecycle the orchestrator back before Start. Lifecycle endpoints
// answer 503 until bound.
type Listener struct {
	cfg    ListenerConfig
	store  slotstore.Store
	logger *slog.Logger

	mu         sync.RWMutex
	lifecycle  Lifecycle
	tapPath    string
	tapHandler http.Handler
	server     *http.Server
	tlsCleanup func()
	started    bool
}

// NewListener creates the listener over the given slot store.
func NewListener(cfg ListenerConfig, store slotstore.Store) (*Listener, error) {
	if store == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "service", "NewListener", "slot store cannot be nil")
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Namespace == "" {
		cfg.Namespace = fusion.DefaultNamespace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{
		cfg:    cfg,
		store:  store,
		logger: logger.With("component", "service.listener"),
	}, nil
}

// Name implements Subsystem.
func (l *Listener) Name() string { return SubsystemListener }

// BindLifecycle wires the orchestrator's state views into the lifecycle
// endpoints. Call before Start.
func (l *Listener) BindLifecycle(lc Lifecycle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lifecycle = lc
}

// MountTap mounts a WebSocket tap handler at path (default /events).
// Call before Start.
func (l *Listener) MountTap(path string, handler http.Handler) {
	if path == "" {
		path = "/events"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tapPath = path
	l.tapHandler = handler
}

// Start binds the port and serves in the background. The bind is
// synchronous so a taken port fails Start rather than surfacing later.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return nil
	}

	tlsConfig, tlsCleanup, err := tlsutil.LoadServerTLSConfigWithACME(ctx, l.cfg.TLS)
	if err != nil {
		return errors.WrapFatal(err, "Listener", "Start", "load TLS config")
	}

	addr := ":" + strconv.Itoa(l.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		tlsCleanup()
		return errors.WrapFatal(err, "Listener", "Start", fmt.Sprintf("bind %s", addr))
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	server := &http.Server{
		Handler:      l.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	l.server = server
	l.tlsCleanup = tlsCleanup
	l.started = true

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			l.logger.Error("HTTP server error", "error", err)
		}
	}()

	l.logger.Info("listener started", "addr", addr, "tls", tlsConfig != nil)
	return nil
}

// Stop shuts the server down gracefully within the timeout, then closes
// whatever connections remain. Idempotent.
func (l *Listener) Stop(timeout time.Duration) error {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return nil
	}
	server := l.server
	cleanup := l.tlsCleanup
	l.started = false
	l.server = nil
	l.tlsCleanup = nil
	// Release the lock before Shutdown: in-flight handlers read listener
	// state and Shutdown waits for them.
	l.mu.Unlock()

	if cleanup != nil {
		defer cleanup()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		_ = server.Close()
		return errors.WrapTransient(err, "Listener", "Stop", "graceful shutdown")
	}

	l.logger.Info("listener stopped")
	return nil
}

func (l *Listener) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", l.handleLiveness)
	mux.HandleFunc("GET /readyz", l.handleReadiness)
	mux.HandleFunc("GET /health", l.handleHealth)
	mux.HandleFunc("GET /states", l.handleStates)
	mux.HandleFunc("GET /slots/{stream}/{frame}/{instance}", l.handleSlotPeek)
	mux.HandleFunc("DELETE /slots/{stream}/{frame}/{instance}", l.handleSlotPop)

	if l.cfg.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(
			l.cfg.Registry.PrometheusRegistry(),
			promhttp.HandlerOpts{EnableOpenMetrics: true},
		))
	}
	if l.tapHandler != nil {
		mux.Handle("GET "+l.tapPath, l.tapHandler)
	}

	return mux
}

func (l *Listener) getLifecycle() Lifecycle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lifecycle
}

// handleLiveness answers 200 whenever the process serves requests.
func (l *Listener) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReadiness answers 200 only when the whole service is Running.
func (l *Listener) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	lc := l.getLifecycle()
	if lc == nil || !lc.Running() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleHealth returns the aggregated health status, 503 when unhealthy.
func (l *Listener) handleHealth(w http.ResponseWriter, _ *http.Request) {
	lc := l.getLifecycle()
	if lc == nil {
		l.writeJSONError(w, "lifecycle not bound", http.StatusServiceUnavailable)
		return
	}

	status := lc.Health()
	w.Header().Set("Content-Type", "application/json")
	if status.IsUnhealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		l.logger.Error("Failed to encode health response", "error", err)
	}
}

// handleStates returns the per-subsystem state map.
func (l *Listener) handleStates(w http.ResponseWriter, _ *http.Request) {
	lc := l.getLifecycle()
	if lc == nil {
		l.writeJSONError(w, "lifecycle not bound", http.StatusServiceUnavailable)
		return
	}
	l.writeJSON(w, lc.States())
}

// slotView is the ops-facing shape of a pending slot.
type slotView struct {
	Key      string          `json:"key"`
	Revision uint64          `json:"revision,omitempty"`
	Created  time.Time       `json:"created,omitempty"`
	Slot     json.RawMessage `json:"slot"`
}

// handleSlotPeek reads a pending slot without consuming it. The view is
// advisory; the slot can be claimed or expire right after.
func (l *Listener) handleSlotPeek(w http.ResponseWriter, r *http.Request) {
	key, ok := l.slotKey(w, r)
	if !ok {
		return
	}

	entry, err := l.store.Get(r.Context(), l.cfg.Namespace, key.StorageKey())
	if err != nil {
		l.logger.Error("slot peek failed", "key", key, "error", err)
		l.writeJSONError(w, "slot store unavailable", http.StatusServiceUnavailable)
		return
	}
	if entry == nil {
		l.writeJSONError(w, "no pending slot", http.StatusNotFound)
		return
	}

	l.writeJSON(w, slotView{
		Key:      key.StorageKey(),
		Revision: entry.Revision,
		Created:  entry.Created,
		Slot:     entry.Value,
	})
}

// handleSlotPop takes a stuck slot out of the store and returns it. The
// removed side will not join; use against slots that outlived their pair.
func (l *Listener) handleSlotPop(w http.ResponseWriter, r *http.Request) {
	key, ok := l.slotKey(w, r)
	if !ok {
		return
	}

	value, taken, err := l.store.GetAndDelete(r.Context(), l.cfg.Namespace, key.StorageKey())
	if err != nil {
		l.logger.Error("slot pop failed", "key", key, "error", err)
		l.writeJSONError(w, "slot store unavailable", http.StatusServiceUnavailable)
		return
	}
	if !taken {
		l.writeJSONError(w, "no pending slot", http.StatusNotFound)
		return
	}

	l.logger.Info("slot removed via API", "key", key)
	l.writeJSON(w, slotView{Key: key.StorageKey(), Slot: value})
}

// slotKey parses and validates the /slots path segments. On failure the
// response is already written and ok is false.
func (l *Listener) slotKey(w http.ResponseWriter, r *http.Request) (fusion.Key, bool) {
	frame, err := strconv.ParseUint(r.PathValue("frame"), 10, 64)
	if err != nil {
		l.writeJSONError(w, "frame must be an unsigned integer", http.StatusBadRequest)
		return fusion.Key{}, false
	}

	key := fusion.Key{
		Stream:   r.PathValue("stream"),
		Frame:    frame,
		Instance: r.PathValue("instance"),
	}
	if err := key.Validate(); err != nil {
		l.writeJSONError(w, "invalid slot key", http.StatusBadRequest)
		return fusion.Key{}, false
	}
	return key, true
}

func (l *Listener) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		l.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (l *Listener) writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		l.logger.Error("Failed to encode error response", "error", err, "message", message)
	}
}
