package influxdb

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/greyfold/zwave-bridge/internal/hub"
	"github.com/greyfold/zwave-bridge/internal/infrastructure/config"
)

// fakeInflux is a minimal InfluxDB v2 endpoint: it answers pings and
// captures write bodies in line protocol.
type fakeInflux struct {
	server *httptest.Server

	mu     sync.Mutex
	writes []string
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()

	f := &fakeInflux{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.writes = append(f.writes, string(body))
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeInflux) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

func (f *fakeInflux) waitForWrite(t *testing.T) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if body := f.body(); body != "" {
			return body
		}
		if time.Now().After(deadline) {
			t.Fatal("no write arrived")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func testInfluxConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "home",
		Bucket:        "zwave",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testInfluxConfig("http://127.0.0.1:1")
	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteEntityState(t *testing.T) {
	fake := newFakeInflux(t)

	c, err := Connect(testInfluxConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer c.Close()

	c.WriteEntityState("ctrl", "light", "light.ctrl.12", map[string]any{
		"state":      "on",
		"brightness": 128,
	})
	c.Flush()

	body := fake.waitForWrite(t)
	if !strings.Contains(body, "entity_state,") {
		t.Errorf("measurement missing: %s", body)
	}
	for _, want := range []string{"controller=ctrl", "entity_type=light", "entity_id=light.ctrl.12", `state="on"`, "brightness=128"} {
		if !strings.Contains(body, want) {
			t.Errorf("write body missing %q: %s", want, body)
		}
	}
}

func TestWriteControllerStatus(t *testing.T) {
	fake := newFakeInflux(t)

	c, err := Connect(testInfluxConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer c.Close()

	c.WriteControllerStatus("ctrl", "disconnected")
	c.Flush()

	body := fake.waitForWrite(t)
	if !strings.Contains(body, "controller_status,controller=ctrl") {
		t.Errorf("write body: %s", body)
	}
	if !strings.Contains(body, `status="disconnected"`) {
		t.Errorf("write body missing status: %s", body)
	}
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	r.HandleEvent(hub.Event{Kind: hub.EventConnected, ControllerID: "ctrl"})

	empty := NewRecorder(nil)
	empty.HandleEvent(hub.Event{Kind: hub.EventConnected, ControllerID: "ctrl"})
}

func TestRecorder_RoutesEvents(t *testing.T) {
	fake := newFakeInflux(t)

	c, err := Connect(testInfluxConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer c.Close()

	r := NewRecorder(c)
	r.HandleEvent(hub.Event{
		Kind:         hub.EventEntityUpdate,
		ControllerID: "ctrl",
		EntityID:     "cover.ctrl.20",
		EntityType:   hub.EntityCover,
		Attributes:   map[string]any{"state": "opening", "position": 45},
	})
	r.HandleEvent(hub.Event{Kind: hub.EventDisconnected, ControllerID: "ctrl"})
	c.Flush()

	body := fake.waitForWrite(t)
	if !strings.Contains(body, "entity_id=cover.ctrl.20") {
		t.Errorf("entity point missing: %s", body)
	}
	if !strings.Contains(body, "position=45") {
		t.Errorf("position field missing: %s", body)
	}
	if !strings.Contains(body, `status="disconnected"`) {
		t.Errorf("status point missing: %s", body)
	}
}
