package zwavejs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
)

// Default timeouts and protocol constants.
const (
	// defaultCommandTimeout bounds how long a command waits for the
	// server result.
	defaultCommandTimeout = 10 * time.Second

	// handshakeTimeout bounds the dial plus greeting exchange.
	handshakeTimeout = 15 * time.Second

	// preferredSchemaVersion is the highest API schema this client
	// speaks; negotiation picks min(preferred, server max).
	preferredSchemaVersion = 39

	// maxMessageSize caps inbound frames. Network snapshots for large
	// installations run to a few megabytes.
	maxMessageSize = 16 << 20

	// turnOnLevel is the Multilevel Switch magic value restoring the
	// previous non-zero level.
	turnOnLevel = 255

	// maxDimLevel is the highest direct Multilevel Switch level.
	maxDimLevel = 99
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Session is the surface the hub consumes. It allows mocking the
// Z-Wave JS Server client in tests.
type Session interface {
	Connect(ctx context.Context) error
	Close() error
	Connected() bool
	Devices() map[int]Device
	Controller() ControllerInfo
	TurnOn(ctx context.Context, nodeID int) error
	TurnOff(ctx context.Context, nodeID int) error
	SetDimmerLevel(ctx context.Context, nodeID, level int) error
	SetOnValueUpdated(callback func(ValueUpdate))
	SetOnNodeStatus(callback func(NodeStatus))
}

// Ensure Client implements Session.
var _ Session = (*Client)(nil)

// ControllerInfo describes the controller hardware behind a session.
type ControllerInfo struct {
	HomeID          uint32
	OwnNodeID       int
	SDKVersion      string
	FirmwareVersion string
}

// Stats contains client counters for monitoring.
type Stats struct {
	EventsReceived uint64
	CommandsSent   uint64
	CommandsFailed uint64
	FramesDropped  uint64
	Connected      bool
}

// Config contains client settings.
type Config struct {
	// URL is the Z-Wave JS Server websocket address.
	URL string

	// CommandTimeout bounds how long commands wait for the server
	// result. Default: 10s.
	CommandTimeout time.Duration
}

// Client is a websocket client for Z-Wave JS Server.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Callbacks are invoked synchronously from the receive loop and
//     must not block.
//
// The client performs no reconnection of its own. A transport failure
// clears the connected flag and the owner decides when to dial again;
// Connect may be called repeatedly over the client's lifetime.
type Client struct {
	cfg Config

	conn    *websocket.Conn
	connMu  sync.Mutex
	writeMu sync.Mutex

	connected  atomic.Bool
	loopCancel context.CancelFunc
	wg         sync.WaitGroup

	schemaVersion int
	controller    ControllerInfo

	devices   map[int]Device
	devicesMu sync.RWMutex

	onValue      func(ValueUpdate)
	onNodeStatus func(NodeStatus)
	callbackMu   sync.RWMutex

	pending   map[string]chan incomingFrame
	pendingMu sync.Mutex
	msgSeq    atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex

	eventsRx       atomic.Uint64
	commandsTx     atomic.Uint64
	commandsFailed atomic.Uint64
	framesDropped  atomic.Uint64
}

// NewClient creates a client for the given server address.
// The client is not connected until Connect is called.
func NewClient(cfg Config) *Client {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	return &Client{
		cfg:     cfg,
		devices: make(map[int]Device),
		pending: make(map[string]chan incomingFrame),
	}
}

// Connect dials the server and completes the session handshake:
// greeting, schema negotiation, start_listening. On success the node
// inventory is populated and the receive loop is running.
//
// Calling Connect on an already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.connected.Load() {
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.cfg.URL, err)
	}
	conn.SetReadLimit(maxMessageSize)

	if err := c.handshake(dialCtx, conn); err != nil {
		conn.Close(websocket.StatusProtocolError, "handshake failed") //nolint:errcheck // Best effort on error path
		return err
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())
	c.conn = conn
	c.loopCancel = loopCancel
	c.connected.Store(true)

	c.wg.Add(1)
	go c.receiveLoop(loopCtx, conn)

	c.logInfo("session established",
		"url", c.cfg.URL,
		"schema", c.schemaVersion,
		"nodes", len(c.Devices()),
	)
	return nil
}

// handshake runs the synchronous part of session setup on a fresh
// connection, before the receive loop starts.
func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) error {
	greeting, err := readFrame(ctx, conn)
	if err != nil {
		return fmt.Errorf("%w: reading greeting: %v", ErrHandshake, err)
	}

	var version versionFrame
	if err := json.Unmarshal(greeting, &version); err != nil || version.Type != frameTypeVersion {
		return fmt.Errorf("%w: unexpected greeting", ErrHandshake)
	}

	schema := preferredSchemaVersion
	if version.MaxSchemaVersion > 0 && version.MaxSchemaVersion < schema {
		schema = version.MaxSchemaVersion
	}
	if schema < version.MinSchemaVersion {
		return fmt.Errorf("%w: server requires schema >= %d, client speaks <= %d",
			ErrHandshake, version.MinSchemaVersion, preferredSchemaVersion)
	}
	c.schemaVersion = schema

	if _, err := c.roundTrip(ctx, conn, commandFrame{
		MessageID:     c.nextMessageID(),
		Command:       "set_api_schema",
		SchemaVersion: &schema,
	}); err != nil {
		return fmt.Errorf("%w: set_api_schema: %v", ErrHandshake, err)
	}

	result, err := c.roundTrip(ctx, conn, commandFrame{
		MessageID: c.nextMessageID(),
		Command:   "start_listening",
	})
	if err != nil {
		return fmt.Errorf("%w: start_listening: %v", ErrHandshake, err)
	}

	var listening startListeningResult
	if err := json.Unmarshal(result, &listening); err != nil {
		return fmt.Errorf("%w: decoding network state: %v", ErrHandshake, err)
	}

	c.controller = ControllerInfo{
		HomeID:          listening.State.Controller.HomeID,
		OwnNodeID:       listening.State.Controller.OwnNodeID,
		SDKVersion:      listening.State.Controller.SDKVersion,
		FirmwareVersion: listening.State.Controller.FirmwareVersion,
	}

	devices := make(map[int]Device, len(listening.State.Nodes))
	for _, n := range listening.State.Nodes {
		if n.NodeID == c.controller.OwnNodeID {
			continue
		}
		devices[n.NodeID] = buildDevice(n)
	}

	c.devicesMu.Lock()
	c.devices = devices
	c.devicesMu.Unlock()

	return nil
}

// roundTrip writes a command and reads frames until its result arrives.
// Only used during the handshake; events seen before a result are
// dropped since no callbacks can be registered yet.
func (c *Client) roundTrip(ctx context.Context, conn *websocket.Conn, cmd commandFrame) (json.RawMessage, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return nil, fmt.Errorf("writing command: %w", err)
	}

	for {
		raw, err := readFrame(ctx, conn)
		if err != nil {
			return nil, err
		}

		var frame incomingFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Type != frameTypeResult || frame.MessageID != cmd.MessageID {
			continue
		}
		if !frame.Success {
			return nil, fmt.Errorf("%w: %s (%s)", ErrCommandFailed, cmd.Command, frame.ErrorCode)
		}
		return frame.Result, nil
	}
}

// readFrame reads one text frame from the socket.
func readFrame(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	_, data, err := conn.Read(ctx)
	return data, err
}

// receiveLoop reads frames until the connection fails or is closed.
func (c *Client) receiveLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		data, err := readFrame(ctx, conn)
		if err != nil {
			c.connected.Store(false)
			c.failPending(ErrClosed)
			if ctx.Err() == nil {
				c.logError("connection lost", err)
			}
			return
		}

		var frame incomingFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.framesDropped.Add(1)
			c.logWarn("dropping undecodable frame", "error", err)
			continue
		}

		switch frame.Type {
		case frameTypeResult:
			c.deliverResult(frame)
		case frameTypeEvent:
			c.eventsRx.Add(1)
			c.handleEvent(frame.Event)
		default:
			c.framesDropped.Add(1)
		}
	}
}

// deliverResult routes a result frame to the waiting command, if any.
func (c *Client) deliverResult(frame incomingFrame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[frame.MessageID]
	if ok {
		delete(c.pending, frame.MessageID)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- frame
	} else {
		c.framesDropped.Add(1)
	}
}

// failPending unblocks all in-flight commands after a transport loss.
func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- incomingFrame{Type: frameTypeResult, Success: false, ErrorCode: err.Error()}
	}
}

// handleEvent decodes and dispatches one event notification.
func (c *Client) handleEvent(raw json.RawMessage) {
	var ev eventPayload
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.logWarn("dropping undecodable event", "error", err)
		return
	}
	if ev.Source != "node" {
		return
	}

	switch ev.Event {
	case eventValueUpdated:
		c.handleValueUpdated(ev)
	case eventNodeDead:
		c.handleNodeStatus(ev, false)
	case eventNodeAlive, eventNodeWakeUp, eventNodeSleep:
		// Sleeping battery nodes are still reachable; only "dead"
		// marks a node unavailable.
		c.handleNodeStatus(ev, true)
	}
}

// handleValueUpdated normalises a value update and invokes the callback.
func (c *Client) handleValueUpdated(ev eventPayload) {
	var args valueUpdatedArgs
	if len(ev.Args) > 0 {
		if err := json.Unmarshal(ev.Args, &args); err != nil {
			c.logWarn("dropping malformed value update", "error", err)
			return
		}
	}

	update := ValueUpdate{
		NodeID:    ev.NodeID,
		Property:  args.PropertyName,
		NewValue:  args.NewValue,
		PrevValue: args.PrevValue,
	}
	if update.Property == "" {
		update.Property = propertyString(args.Property)
	}

	// Keep the inventory's last known level fresh so re-scans observe
	// current positions without a server round trip.
	if ev.NodeID != nil && update.Property == "currentValue" {
		c.devicesMu.Lock()
		if d, ok := c.devices[*ev.NodeID]; ok {
			d.Value = args.NewValue
			c.devices[*ev.NodeID] = d
		}
		c.devicesMu.Unlock()
	}

	c.callbackMu.RLock()
	callback := c.onValue
	c.callbackMu.RUnlock()

	if callback != nil {
		c.safeInvoke(func() { callback(update) })
	}
}

// handleNodeStatus updates the inventory and invokes the status callback.
func (c *Client) handleNodeStatus(ev eventPayload, alive bool) {
	if ev.NodeID == nil {
		return
	}

	c.devicesMu.Lock()
	if d, ok := c.devices[*ev.NodeID]; ok {
		d.Alive = alive
		c.devices[*ev.NodeID] = d
	}
	c.devicesMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onNodeStatus
	c.callbackMu.RUnlock()

	if callback != nil {
		c.safeInvoke(func() { callback(NodeStatus{NodeID: *ev.NodeID, Alive: alive}) })
	}
}

// safeInvoke runs a callback with panic recovery so a misbehaving
// handler cannot kill the receive loop.
func (c *Client) safeInvoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logError("callback panicked", fmt.Errorf("%v", r))
		}
	}()
	fn()
}

// Close tears down the current connection. Safe to call multiple times
// and while disconnected; the client may be reconnected afterwards.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}

	c.connected.Store(false)
	c.loopCancel()
	c.conn.Close(websocket.StatusNormalClosure, "") //nolint:errcheck // Connection may already be gone
	c.wg.Wait()

	c.conn = nil
	c.loopCancel = nil
	c.failPending(ErrClosed)

	c.logInfo("session closed", "url", c.cfg.URL)
	return nil
}

// Connected reports the live transport state. It reflects receive-loop
// failures immediately, not a cached login state.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Devices returns a snapshot of the node inventory.
func (c *Client) Devices() map[int]Device {
	c.devicesMu.RLock()
	defer c.devicesMu.RUnlock()

	devices := make(map[int]Device, len(c.devices))
	for id, d := range c.devices {
		devices[id] = d
	}
	return devices
}

// Controller returns the controller hardware details captured during
// the handshake.
func (c *Client) Controller() ControllerInfo {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.controller
}

// TurnOn switches a node on, restoring its previous dim level.
func (c *Client) TurnOn(ctx context.Context, nodeID int) error {
	return c.setValue(ctx, nodeID, turnOnLevel)
}

// TurnOff switches a node off.
func (c *Client) TurnOff(ctx context.Context, nodeID int) error {
	return c.setValue(ctx, nodeID, 0)
}

// SetDimmerLevel moves a node to a direct level in the 0-99 device domain.
func (c *Client) SetDimmerLevel(ctx context.Context, nodeID, level int) error {
	if level < 0 {
		level = 0
	}
	if level > maxDimLevel {
		level = maxDimLevel
	}
	return c.setValue(ctx, nodeID, level)
}

// setValue issues node.set_value against the Multilevel Switch target.
func (c *Client) setValue(ctx context.Context, nodeID, value int) error {
	cmd := commandFrame{
		MessageID: c.nextMessageID(),
		Command:   "node.set_value",
		NodeID:    &nodeID,
		Value:     value,
	}
	cmd.ValueID = &struct {
		CommandClass int    `json:"commandClass"`
		Property     string `json:"property"`
	}{
		CommandClass: commandClassSwitchMultilevel,
		Property:     "targetValue",
	}

	return c.request(ctx, cmd)
}

// request sends a command and waits for its result.
func (c *Client) request(ctx context.Context, cmd commandFrame) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	resultCh := make(chan incomingFrame, 1)
	c.pendingMu.Lock()
	c.pending[cmd.MessageID] = resultCh
	c.pendingMu.Unlock()

	c.commandsTx.Add(1)

	c.writeMu.Lock()
	err = conn.Write(ctx, websocket.MessageText, data)
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(cmd.MessageID)
		c.commandsFailed.Add(1)
		return fmt.Errorf("writing command: %w", err)
	}

	timer := time.NewTimer(c.cfg.CommandTimeout)
	defer timer.Stop()

	select {
	case frame := <-resultCh:
		if !frame.Success {
			c.commandsFailed.Add(1)
			return fmt.Errorf("%w: %s (%s)", ErrCommandFailed, cmd.Command, frame.ErrorCode)
		}
		return nil
	case <-timer.C:
		c.dropPending(cmd.MessageID)
		c.commandsFailed.Add(1)
		return fmt.Errorf("%w: %s", ErrCommandTimeout, cmd.Command)
	case <-ctx.Done():
		c.dropPending(cmd.MessageID)
		c.commandsFailed.Add(1)
		return ctx.Err()
	}
}

// dropPending removes a pending command registration.
func (c *Client) dropPending(messageID string) {
	c.pendingMu.Lock()
	delete(c.pending, messageID)
	c.pendingMu.Unlock()
}

// SetOnValueUpdated registers the value update callback.
// Pass nil to deregister.
func (c *Client) SetOnValueUpdated(callback func(ValueUpdate)) {
	c.callbackMu.Lock()
	c.onValue = callback
	c.callbackMu.Unlock()
}

// SetOnNodeStatus registers the node status callback.
// Pass nil to deregister.
func (c *Client) SetOnNodeStatus(callback func(NodeStatus)) {
	c.callbackMu.Lock()
	c.onNodeStatus = callback
	c.callbackMu.Unlock()
}

// SetLogger sets an optional logger.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// Stats returns a snapshot of client counters.
func (c *Client) Stats() Stats {
	return Stats{
		EventsReceived: c.eventsRx.Load(),
		CommandsSent:   c.commandsTx.Load(),
		CommandsFailed: c.commandsFailed.Load(),
		FramesDropped:  c.framesDropped.Load(),
		Connected:      c.connected.Load(),
	}
}

// nextMessageID produces a unique correlation id for one command.
func (c *Client) nextMessageID() string {
	return fmt.Sprintf("zwb-%d", c.msgSeq.Add(1))
}

// logInfo logs an info message if logger is set.
func (c *Client) logInfo(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (c *Client) logWarn(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (c *Client) logError(msg string, err error) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
