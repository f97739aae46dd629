package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/greyfold/zwave-bridge/internal/zwavejs"
)

// mockCommand records one device command issued to the mock session.
type mockCommand struct {
	op     string
	nodeID int
	level  int
}

// mockSession is a hand-rolled zwavejs.Session for hub tests.
type mockSession struct {
	mu           sync.Mutex
	connected    bool
	connectErr   error
	commandErr   error
	connectCalls int
	closeCalls   int
	devices      map[int]zwavejs.Device
	onValue      func(zwavejs.ValueUpdate)
	onStatus     func(zwavejs.NodeStatus)
	commands     []mockCommand
}

var _ zwavejs.Session = (*mockSession)(nil)

func (m *mockSession) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	m.connected = false
	return nil
}

func (m *mockSession) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockSession) Devices() map[int]zwavejs.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	devices := make(map[int]zwavejs.Device, len(m.devices))
	for id, d := range m.devices {
		devices[id] = d
	}
	return devices
}

func (m *mockSession) Controller() zwavejs.ControllerInfo {
	return zwavejs.ControllerInfo{HomeID: 1, OwnNodeID: 1}
}

func (m *mockSession) TurnOn(ctx context.Context, nodeID int) error {
	return m.record("turn_on", nodeID, 0)
}

func (m *mockSession) TurnOff(ctx context.Context, nodeID int) error {
	return m.record("turn_off", nodeID, 0)
}

func (m *mockSession) SetDimmerLevel(ctx context.Context, nodeID, level int) error {
	return m.record("set_dimmer_level", nodeID, level)
}

func (m *mockSession) record(op string, nodeID, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, mockCommand{op: op, nodeID: nodeID, level: level})
	return m.commandErr
}

func (m *mockSession) SetOnValueUpdated(callback func(zwavejs.ValueUpdate)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onValue = callback
}

func (m *mockSession) SetOnNodeStatus(callback func(zwavejs.NodeStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = callback
}

// pushValue delivers a value update through the registered callback.
func (m *mockSession) pushValue(u zwavejs.ValueUpdate) {
	m.mu.Lock()
	callback := m.onValue
	m.mu.Unlock()
	if callback != nil {
		callback(u)
	}
}

// pushStatus delivers a node status through the registered callback.
func (m *mockSession) pushStatus(s zwavejs.NodeStatus) {
	m.mu.Lock()
	callback := m.onStatus
	m.mu.Unlock()
	if callback != nil {
		callback(s)
	}
}

// dropLink simulates a transport loss without closing anything.
func (m *mockSession) dropLink() {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
}

func (m *mockSession) setConnectErr(err error) {
	m.mu.Lock()
	m.connectErr = err
	m.mu.Unlock()
}

func (m *mockSession) connectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCalls
}

func (m *mockSession) lastCommand() (mockCommand, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commands) == 0 {
		return mockCommand{}, false
	}
	return m.commands[len(m.commands)-1], true
}

func (m *mockSession) commandCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commands)
}

func (m *mockSession) valueCallbackSet() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onValue != nil
}

// recordingSink collects hub events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) HandleEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *recordingSink) kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]EventKind, len(s.events))
	for i, e := range s.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func (s *recordingSink) entityEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updates []Event
	for _, e := range s.events {
		if e.Kind == EventEntityUpdate {
			updates = append(updates, e)
		}
	}
	return updates
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// testDevices returns the standard fixture inventory: a dimmer light, a
// motorised blind, an unmapped sensor, and a light with no known level.
func testDevices() map[int]zwavejs.Device {
	return map[int]zwavejs.Device{
		12: {NodeID: 12, Name: "Kitchen Dimmer", Type: "Multilevel Switch Multilevel Power Switch", Value: float64(50), Alive: true},
		20: {NodeID: 20, Name: "Bedroom Blind", Type: "Multilevel Switch Motor Control Class B", Value: float64(20), Alive: true},
		30: {NodeID: 30, Name: "Hall Sensor", Type: "Binary Sensor Routing Sensor", Alive: true},
		40: {NodeID: 40, Name: "Porch Light", Type: "Binary Switch", Value: nil, Alive: true},
	}
}

func newTestHub(t *testing.T, session *mockSession, sink *recordingSink) *Hub {
	t.Helper()

	h, err := New(Options{
		ControllerID:      "ctrl",
		Session:           session,
		Sink:              sink,
		WatchdogInterval:  100 * time.Millisecond,
		ReconnectAttempts: 3,
		ReconnectDelay:    time.Millisecond,
		CommandTimeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(h.Disconnect)
	return h
}

func connectedHub(t *testing.T) (*Hub, *mockSession, *recordingSink) {
	t.Helper()

	session := &mockSession{devices: testDevices()}
	sink := &recordingSink{}
	h := newTestHub(t, session, sink)

	if err := h.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	sink.reset()
	return h, session, sink
}

func TestNew_Validation(t *testing.T) {
	session := &mockSession{}

	if _, err := New(Options{Session: session}); err == nil {
		t.Error("expected error for missing controller id")
	}
	if _, err := New(Options{ControllerID: "a.b", Session: session}); err == nil {
		t.Error("expected error for controller id containing delimiter")
	}
	if _, err := New(Options{ControllerID: "ctrl"}); err == nil {
		t.Error("expected error for missing session")
	}
}

func TestConnect_EstablishesSession(t *testing.T) {
	session := &mockSession{devices: testDevices()}
	sink := &recordingSink{}
	h := newTestHub(t, session, sink)

	if err := h.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	if h.State() != StateConnected {
		t.Errorf("state = %v, want connected", h.State())
	}
	if !session.valueCallbackSet() {
		t.Error("expected value callback registered")
	}

	kinds := sink.kinds()
	if len(kinds) != 2 || kinds[0] != EventConnecting || kinds[1] != EventConnected {
		t.Errorf("event kinds = %v, want [connecting connected]", kinds)
	}

	// Enumeration populates without emitting entity updates.
	if updates := sink.entityEvents(); len(updates) != 0 {
		t.Errorf("enumeration emitted %d entity updates, want 0", len(updates))
	}

	m := h.Metrics()
	if m.Lights != 2 {
		t.Errorf("lights = %d, want 2", m.Lights)
	}
	if m.Covers != 1 {
		t.Errorf("covers = %d, want 1", m.Covers)
	}
}

func TestConnect_Idempotent(t *testing.T) {
	h, session, sink := connectedHub(t)

	calls := session.connectCount()
	if err := h.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect() error: %v", err)
	}

	if session.connectCount() != calls {
		t.Error("second Connect() dialed again despite live session")
	}
	if len(sink.all()) != 0 {
		t.Error("second Connect() emitted events")
	}
}

func TestConnect_FailureLeavesDisconnected(t *testing.T) {
	session := &mockSession{connectErr: errors.New("refused")}
	sink := &recordingSink{}
	h := newTestHub(t, session, sink)

	if err := h.Connect(context.Background()); err == nil {
		t.Fatal("expected Connect() error")
	}

	if h.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", h.State())
	}

	kinds := sink.kinds()
	if len(kinds) != 2 || kinds[0] != EventConnecting || kinds[1] != EventDisconnected {
		t.Errorf("event kinds = %v, want [connecting disconnected]", kinds)
	}
}

func TestDisconnect(t *testing.T) {
	h, session, sink := connectedHub(t)

	h.Disconnect()

	if h.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", h.State())
	}
	if session.valueCallbackSet() {
		t.Error("expected callbacks deregistered")
	}
	if session.Connected() {
		t.Error("expected session closed")
	}

	kinds := sink.kinds()
	if len(kinds) != 1 || kinds[0] != EventDisconnected {
		t.Errorf("event kinds = %v, want [disconnected]", kinds)
	}

	// Second disconnect is a silent no-op.
	sink.reset()
	h.Disconnect()
	if len(sink.all()) != 0 {
		t.Error("repeated Disconnect() emitted events")
	}
}

func TestWatchdog_BoundedReconnect(t *testing.T) {
	session := &mockSession{devices: testDevices()}
	sink := &recordingSink{}

	// Long interval keeps the second watchdog cycle far away from the
	// assertion window.
	h, err := New(Options{
		ControllerID:      "ctrl",
		Session:           session,
		Sink:              sink,
		WatchdogInterval:  500 * time.Millisecond,
		ReconnectAttempts: 3,
		ReconnectDelay:    time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(h.Disconnect)

	if err := h.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	// Link drops and every reconnect attempt fails.
	session.setConnectErr(errors.New("refused"))
	session.dropLink()
	baseline := session.connectCount()

	// Wait for the cycle to start, then let it finish.
	deadline := time.Now().Add(2 * time.Second)
	for session.connectCount() == baseline {
		if time.Now().After(deadline) {
			t.Fatal("watchdog never attempted reconnection")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	attempts := session.connectCount() - baseline
	if attempts != 3 {
		t.Errorf("reconnect attempts in first cycle = %d, want 3", attempts)
	}

	if h.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected after exhausted cycle", h.State())
	}
}

func TestWatchdog_Recovers(t *testing.T) {
	h, session, sink := connectedHub(t)

	session.dropLink()

	// The hub's cached state stays connected until the next tick, so
	// wait on the reconnect counter, which only moves once a full
	// recovery cycle has succeeded.
	deadline := time.Now().Add(2 * time.Second)
	for h.Metrics().Reconnects == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watchdog did not recover the session")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if h.State() != StateConnected {
		t.Errorf("state = %v, want connected after recovery", h.State())
	}

	if !session.valueCallbackSet() {
		t.Error("expected callbacks re-registered after reconnect")
	}

	kinds := sink.kinds()
	if len(kinds) == 0 || kinds[len(kinds)-1] != EventConnected {
		t.Errorf("event kinds = %v, want trailing connected", kinds)
	}
	sawDisconnected := false
	for _, k := range kinds {
		if k == EventDisconnected {
			sawDisconnected = true
		}
	}
	if !sawDisconnected {
		t.Error("expected disconnected signal before recovery")
	}
}

func TestWatchdog_StopsCleanly(t *testing.T) {
	h, _, _ := connectedHub(t)

	done := make(chan struct{})
	go func() {
		h.Disconnect()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect() did not stop the watchdog")
	}
}
