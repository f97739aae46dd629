package hub

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/greyfold/zwave-bridge/internal/zwavejs"
)

// Default supervision tunables.
const (
	// defaultWatchdogInterval is how often the live connection flag is
	// checked.
	defaultWatchdogInterval = 30 * time.Second

	// defaultReconnectAttempts bounds reconnect attempts within one
	// watchdog cycle.
	defaultReconnectAttempts = 3

	// defaultReconnectDelay is the pause before each reconnect attempt.
	defaultReconnectDelay = 5 * time.Second

	// defaultCommandTimeout bounds device command dispatch.
	defaultCommandTimeout = 10 * time.Second
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Hub.
type Options struct {
	// ControllerID identifies the supervised controller and becomes the
	// middle component of every entity id. Must not contain ".".
	ControllerID string

	// Session is the Z-Wave JS Server session to supervise.
	Session zwavejs.Session

	// Sink receives connection and entity events. Optional.
	Sink Sink

	// Logger is optional.
	Logger Logger

	// WatchdogInterval overrides the 30s connection check cadence.
	WatchdogInterval time.Duration

	// ReconnectAttempts overrides the per-cycle reconnect bound of 3.
	ReconnectAttempts int

	// ReconnectDelay overrides the 5s pause before reconnect attempts.
	ReconnectDelay time.Duration

	// CommandTimeout overrides the 10s device command timeout.
	CommandTimeout time.Duration
}

// Hub supervises one controller session and reconciles device events
// into normalised entity state.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Sink callbacks are invoked synchronously and must not block.
type Hub struct {
	controllerID string
	session      zwavejs.Session
	sink         Sink

	watchdogInterval  time.Duration
	reconnectAttempts int
	reconnectDelay    time.Duration
	commandTimeout    time.Duration

	// connMu serialises Connect/Disconnect/reconnect transitions.
	connMu sync.Mutex
	state  ConnState

	// cacheMu guards the entity caches. Full replacements swap both
	// maps under the lock so observers never see a partial scan.
	cacheMu sync.RWMutex
	lights  map[int]*LightState
	covers  map[int]*CoverState

	watchdogMu     sync.Mutex
	watchdogCancel context.CancelFunc
	wg             sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex

	eventsRx         atomic.Uint64
	eventsDropped    atomic.Uint64
	eventsReconciled atomic.Uint64
	commandsTx       atomic.Uint64
	commandFailures  atomic.Uint64
	reconnectsTotal  atomic.Uint64
}

// New creates a Hub for the given controller session.
func New(opts Options) (*Hub, error) {
	if opts.ControllerID == "" {
		return nil, fmt.Errorf("hub: controller id is required")
	}
	if strings.Contains(opts.ControllerID, entityIDDelimiter) {
		return nil, fmt.Errorf("hub: controller id %q must not contain %q", opts.ControllerID, entityIDDelimiter)
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("hub: session is required")
	}

	if opts.WatchdogInterval <= 0 {
		opts.WatchdogInterval = defaultWatchdogInterval
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = defaultReconnectAttempts
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}

	return &Hub{
		controllerID:      opts.ControllerID,
		session:           opts.Session,
		sink:              opts.Sink,
		watchdogInterval:  opts.WatchdogInterval,
		reconnectAttempts: opts.ReconnectAttempts,
		reconnectDelay:    opts.ReconnectDelay,
		commandTimeout:    opts.CommandTimeout,
		state:             StateDisconnected,
		lights:            make(map[int]*LightState),
		covers:            make(map[int]*CoverState),
		logger:            opts.Logger,
	}, nil
}

// Connect establishes the supervised session: teardown of any stale
// session, one connection attempt, callback registration, entity
// enumeration, then the watchdog starts. No-op when already connected.
//
// Session failures are returned as errors and leave the hub
// disconnected; they never panic or kill the process.
func (h *Hub) Connect(ctx context.Context) error {
	h.connMu.Lock()
	defer h.connMu.Unlock()

	if h.session.Connected() {
		return nil
	}

	if err := h.connectLocked(ctx); err != nil {
		return err
	}

	h.startWatchdog()
	return nil
}

// connectLocked runs one full connect sequence. Caller holds connMu.
func (h *Hub) connectLocked(ctx context.Context) error {
	// Stale sessions hold dead sockets and registered callbacks.
	h.teardownLocked()

	h.setStateLocked(StateConnecting)

	if err := h.session.Connect(ctx); err != nil {
		h.logError("connection attempt failed", err)
		h.setStateLocked(StateDisconnected)
		return fmt.Errorf("connecting session: %w", err)
	}

	h.session.SetOnValueUpdated(h.onValueUpdated)
	h.session.SetOnNodeStatus(h.onNodeStatus)

	lights, covers := h.refreshEntities()
	info := h.session.Controller()
	h.logInfo("session connected",
		"home_id", info.HomeID,
		"controller_node", info.OwnNodeID,
		"lights", lights,
		"covers", covers,
	)

	h.setStateLocked(StateConnected)
	return nil
}

// teardownLocked deregisters callbacks and closes the session, ignoring
// errors. Caller holds connMu.
func (h *Hub) teardownLocked() {
	h.session.SetOnValueUpdated(nil)
	h.session.SetOnNodeStatus(nil)
	if err := h.session.Close(); err != nil {
		h.logDebug("session close during teardown", "error", err)
	}
}

// Disconnect stops the watchdog, deregisters callbacks, closes the
// session, and signals the disconnected state. Safe to call repeatedly.
func (h *Hub) Disconnect() {
	h.stopWatchdog()

	h.connMu.Lock()
	defer h.connMu.Unlock()

	h.teardownLocked()
	h.setStateLocked(StateDisconnected)
}

// startWatchdog launches the connection check loop. Caller holds connMu.
func (h *Hub) startWatchdog() {
	h.watchdogMu.Lock()
	defer h.watchdogMu.Unlock()

	if h.watchdogCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.watchdogCancel = cancel

	h.wg.Add(1)
	go h.watchdog(ctx)
}

// stopWatchdog cancels the loop and waits for it to exit.
func (h *Hub) stopWatchdog() {
	h.watchdogMu.Lock()
	cancel := h.watchdogCancel
	h.watchdogCancel = nil
	h.watchdogMu.Unlock()

	if cancel != nil {
		cancel()
		h.wg.Wait()
	}
}

// watchdog periodically checks the session's live connected flag and
// runs the bounded reconnect sequence when the link is down.
//
// Cancellation is a clean exit, not a failure; exhausted reconnect
// cycles log an error and leave recovery to the next tick. The loop
// itself never terminates on connection errors.
func (h *Hub) watchdog(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logDebug("watchdog stopped")
			return
		case <-ticker.C:
			if h.session.Connected() {
				continue
			}
			h.logWarn("connection lost, starting recovery")
			h.reconnect(ctx)
		}
	}
}

// reconnect runs up to reconnectAttempts full connection sequences,
// each preceded by a best-effort teardown and a fixed delay.
func (h *Hub) reconnect(ctx context.Context) {
	h.connMu.Lock()
	defer h.connMu.Unlock()

	h.setStateLocked(StateDisconnected)

	for attempt := 1; attempt <= h.reconnectAttempts; attempt++ {
		h.teardownLocked()

		select {
		case <-ctx.Done():
			return
		case <-time.After(h.reconnectDelay):
		}

		if err := h.connectLocked(ctx); err != nil {
			h.logWarn("reconnect attempt failed",
				"attempt", attempt,
				"max_attempts", h.reconnectAttempts,
				"error", err,
			)
			continue
		}

		h.reconnectsTotal.Add(1)
		h.logInfo("reconnected", "attempt", attempt)
		return
	}

	h.logError("reconnect attempts exhausted, retrying on next watchdog tick",
		fmt.Errorf("%d attempts failed", h.reconnectAttempts))
}

// setStateLocked records a state transition and notifies the sink.
// Repeated transitions into the same state are not re-signalled.
// Caller holds connMu.
func (h *Hub) setStateLocked(state ConnState) {
	if h.state == state {
		return
	}
	h.state = state

	var kind EventKind
	switch state {
	case StateConnecting:
		kind = EventConnecting
	case StateConnected:
		kind = EventConnected
	default:
		kind = EventDisconnected
	}

	h.emit(Event{Kind: kind, ControllerID: h.controllerID})
}

// State returns the current connection state.
func (h *Hub) State() ConnState {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.state
}

// emit delivers an event to the sink, if one is set.
func (h *Hub) emit(e Event) {
	if h.sink != nil {
		h.sink.HandleEvent(e)
	}
}

// Metrics returns a snapshot of hub counters.
func (h *Hub) Metrics() Metrics {
	h.cacheMu.RLock()
	lights := len(h.lights)
	covers := len(h.covers)
	h.cacheMu.RUnlock()

	return Metrics{
		EventsReceived:     h.eventsRx.Load(),
		EventsDropped:      h.eventsDropped.Load(),
		EventsReconciled:   h.eventsReconciled.Load(),
		CommandsDispatched: h.commandsTx.Load(),
		CommandFailures:    h.commandFailures.Load(),
		Reconnects:         h.reconnectsTotal.Load(),
		Lights:             lights,
		Covers:             covers,
		State:              h.State(),
	}
}

// SetLogger sets an optional logger.
func (h *Hub) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// logDebug logs a debug message if logger is set.
func (h *Hub) logDebug(msg string, keysAndValues ...any) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if logger is set.
func (h *Hub) logInfo(msg string, keysAndValues ...any) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (h *Hub) logWarn(msg string, keysAndValues ...any) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (h *Hub) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
