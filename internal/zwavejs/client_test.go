package zwavejs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

// fakeServer speaks just enough of the Z-Wave JS Server protocol to
// exercise the client: greeting, schema negotiation, start_listening,
// node.set_value, and pushed events.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu   sync.Mutex
	conn *websocket.Conn

	setValues    chan map[string]any
	failSetValue bool
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	f := &fakeServer{
		t:         t,
		setValues: make(chan map[string]any, 8),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	ctx := r.Context()

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	f.write(ctx, map[string]any{
		"type":             "version",
		"driverVersion":    "12.4.0",
		"serverVersion":    "1.35.0",
		"homeId":           3735928559,
		"minSchemaVersion": 0,
		"maxSchemaVersion": 39,
	})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var cmd map[string]any
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		id, _ := cmd["messageId"].(string)

		switch cmd["command"] {
		case "set_api_schema":
			f.write(ctx, map[string]any{
				"type": "result", "messageId": id, "success": true,
				"result": map[string]any{},
			})
		case "start_listening":
			f.write(ctx, map[string]any{
				"type": "result", "messageId": id, "success": true,
				"result": map[string]any{"state": f.networkState()},
			})
		case "node.set_value":
			select {
			case f.setValues <- cmd:
			default:
			}
			if f.failSetValue {
				f.write(ctx, map[string]any{
					"type": "result", "messageId": id, "success": false,
					"errorCode": "zwave_error",
				})
			} else {
				f.write(ctx, map[string]any{
					"type": "result", "messageId": id, "success": true,
					"result": map[string]any{},
				})
			}
		}
	}
}

func (f *fakeServer) networkState() map[string]any {
	return map[string]any{
		"controller": map[string]any{
			"homeId":          3735928559,
			"ownNodeId":       1,
			"sdkVersion":      "7.19.4",
			"firmwareVersion": "1.2",
		},
		"nodes": []map[string]any{
			{
				"nodeId": 1,
				"status": nodeStatusAlive,
				"deviceClass": map[string]any{
					"generic": map[string]any{"key": 2, "label": "Static Controller"},
				},
			},
			{
				"nodeId": 12,
				"name":   "Kitchen Dimmer",
				"status": nodeStatusAlive,
				"deviceClass": map[string]any{
					"generic":  map[string]any{"key": 17, "label": "Multilevel Switch"},
					"specific": map[string]any{"key": 1, "label": "Multilevel Power Switch"},
				},
				"values": []map[string]any{
					{"commandClass": 38, "property": "currentValue", "value": 50},
				},
			},
			{
				"nodeId": 20,
				"name":   "Bedroom Blind",
				"status": nodeStatusAlive,
				"deviceClass": map[string]any{
					"generic":  map[string]any{"key": 17, "label": "Multilevel Switch"},
					"specific": map[string]any{"key": 5, "label": "Motor Control Class B"},
				},
				"values": []map[string]any{
					{"commandClass": 38, "property": "currentValue", "value": 20},
				},
			},
		},
	}
}

func (f *fakeServer) write(ctx context.Context, frame map[string]any) {
	data, err := json.Marshal(frame)
	if err != nil {
		f.t.Errorf("marshaling frame: %v", err)
		return
	}

	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		f.t.Error("write before connection established")
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		f.t.Logf("server write: %v", err)
	}
}

func (f *fakeServer) pushEvent(event map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	f.write(ctx, map[string]any{"type": "event", "event": event})
}

func connectTestClient(t *testing.T, f *fakeServer) *Client {
	t.Helper()

	client := NewClient(Config{URL: f.url(), CommandTimeout: 2 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClient_ConnectBuildsInventory(t *testing.T) {
	f := newFakeServer(t)
	client := connectTestClient(t, f)

	if !client.Connected() {
		t.Fatal("expected connected client")
	}

	info := client.Controller()
	if info.OwnNodeID != 1 {
		t.Errorf("own node id = %d, want 1", info.OwnNodeID)
	}
	if info.SDKVersion != "7.19.4" {
		t.Errorf("sdk version = %q", info.SDKVersion)
	}

	devices := client.Devices()
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2 (controller node excluded)", len(devices))
	}

	dimmer, ok := devices[12]
	if !ok {
		t.Fatal("expected node 12 in inventory")
	}
	if dimmer.Type != "Multilevel Switch Multilevel Power Switch" {
		t.Errorf("dimmer type = %q", dimmer.Type)
	}
	if v, ok := dimmer.Value.(float64); !ok || v != 50 {
		t.Errorf("dimmer value = %v, want 50", dimmer.Value)
	}

	blind := devices[20]
	if !strings.Contains(blind.Type, "Motor Control") {
		t.Errorf("blind type = %q, want motor control classification", blind.Type)
	}
}

func TestClient_ConnectIdempotent(t *testing.T) {
	f := newFakeServer(t)
	client := connectTestClient(t, f)

	if err := client.Connect(context.Background()); err != nil {
		t.Errorf("second Connect() error: %v", err)
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	f := newFakeServer(t)
	client := connectTestClient(t, f)

	if err := client.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if client.Connected() {
		t.Error("expected disconnected after Close")
	}
}

func TestClient_ValueUpdatedCallback(t *testing.T) {
	f := newFakeServer(t)
	client := connectTestClient(t, f)

	updates := make(chan ValueUpdate, 1)
	client.SetOnValueUpdated(func(u ValueUpdate) { updates <- u })

	f.pushEvent(map[string]any{
		"source": "node",
		"event":  "value updated",
		"nodeId": 12,
		"args": map[string]any{
			"commandClass":     38,
			"commandClassName": "Multilevel Switch",
			"property":         "currentValue",
			"propertyName":     "currentValue",
			"newValue":         75,
			"prevValue":        50,
		},
	})

	select {
	case u := <-updates:
		if u.NodeID == nil || *u.NodeID != 12 {
			t.Errorf("node id = %v, want 12", u.NodeID)
		}
		if u.Property != "currentValue" {
			t.Errorf("property = %q", u.Property)
		}
		if v, ok := u.NewValue.(float64); !ok || v != 75 {
			t.Errorf("new value = %v, want 75", u.NewValue)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value update")
	}

	// Inventory cache follows the event.
	deadline := time.Now().Add(time.Second)
	for {
		if v, ok := client.Devices()[12].Value.(float64); ok && v == 75 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("inventory value = %v, want 75", client.Devices()[12].Value)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClient_NodeStatusCallback(t *testing.T) {
	f := newFakeServer(t)
	client := connectTestClient(t, f)

	statuses := make(chan NodeStatus, 1)
	client.SetOnNodeStatus(func(s NodeStatus) { statuses <- s })

	f.pushEvent(map[string]any{
		"source": "node",
		"event":  "dead",
		"nodeId": 20,
	})

	select {
	case s := <-statuses:
		if s.NodeID != 20 || s.Alive {
			t.Errorf("status = %+v, want node 20 dead", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for node status")
	}

	if client.Devices()[20].Alive {
		t.Error("inventory should mark node 20 dead")
	}
}

// Sleep transitions on battery nodes report the node as reachable, the
// same convention enumeration uses for asleep nodes.
func TestClient_NodeSleepIsAlive(t *testing.T) {
	f := newFakeServer(t)
	client := connectTestClient(t, f)

	statuses := make(chan NodeStatus, 1)
	client.SetOnNodeStatus(func(s NodeStatus) { statuses <- s })

	f.pushEvent(map[string]any{
		"source": "node",
		"event":  "sleep",
		"nodeId": 20,
	})

	select {
	case s := <-statuses:
		if s.NodeID != 20 || !s.Alive {
			t.Errorf("status = %+v, want node 20 alive", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for node status")
	}
}

func TestClient_SetDimmerLevel(t *testing.T) {
	f := newFakeServer(t)
	client := connectTestClient(t, f)

	if err := client.SetDimmerLevel(context.Background(), 12, 40); err != nil {
		t.Fatalf("SetDimmerLevel() error: %v", err)
	}

	select {
	case cmd := <-f.setValues:
		if cmd["nodeId"] != float64(12) {
			t.Errorf("node id = %v, want 12", cmd["nodeId"])
		}
		if cmd["value"] != float64(40) {
			t.Errorf("value = %v, want 40", cmd["value"])
		}
		valueID, _ := cmd["valueId"].(map[string]any)
		if valueID["commandClass"] != float64(38) {
			t.Errorf("command class = %v, want 38", valueID["commandClass"])
		}
		if valueID["property"] != "targetValue" {
			t.Errorf("property = %v, want targetValue", valueID["property"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive set_value")
	}
}

func TestClient_TurnOnUsesRestoreLevel(t *testing.T) {
	f := newFakeServer(t)
	client := connectTestClient(t, f)

	if err := client.TurnOn(context.Background(), 12); err != nil {
		t.Fatalf("TurnOn() error: %v", err)
	}

	select {
	case cmd := <-f.setValues:
		if cmd["value"] != float64(turnOnLevel) {
			t.Errorf("value = %v, want %d", cmd["value"], turnOnLevel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive set_value")
	}
}

func TestClient_CommandFailure(t *testing.T) {
	f := newFakeServer(t)
	f.failSetValue = true
	client := connectTestClient(t, f)

	err := client.TurnOff(context.Background(), 12)
	if !errors.Is(err, ErrCommandFailed) {
		t.Errorf("TurnOff() error = %v, want ErrCommandFailed", err)
	}
}

func TestClient_CommandWhileDisconnected(t *testing.T) {
	client := NewClient(Config{URL: "ws://127.0.0.1:1"})

	err := client.TurnOn(context.Background(), 12)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("TurnOn() error = %v, want ErrNotConnected", err)
	}
}

func TestClient_ConnectedReflectsTransportLoss(t *testing.T) {
	f := newFakeServer(t)
	client := connectTestClient(t, f)

	// Server side drops the connection.
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	conn.Close(websocket.StatusGoingAway, "test shutdown")

	deadline := time.Now().Add(2 * time.Second)
	for client.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("Connected() still true after transport loss")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
