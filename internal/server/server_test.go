package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/benywifi/beny/internal/charger"
	"github.com/benywifi/beny/internal/metrics"
	"github.com/benywifi/beny/internal/poller"
	"github.com/benywifi/beny/internal/protocol"
)

// queueFetcher hands out readings in order, then fails.
type queueFetcher struct {
	mu       sync.Mutex
	readings []*charger.Reading
}

func (f *queueFetcher) FetchReading(context.Context) (*charger.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.readings) == 0 {
		return nil, &charger.DeviceError{Type: charger.ErrTypeTimeout, Message: "No response from charger"}
	}
	r := f.readings[0]
	f.readings = f.readings[1:]
	return r, nil
}

func testReading(state protocol.ChargerState, power float64) *charger.Reading {
	return &charger.Reading{
		State:        state,
		ChargerState: state.Label(),
		Voltage1:     230,
		Power:        power,
		TotalKWh:     12.3,
		UpdatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T, readings ...*charger.Reading) (*httptest.Server, *poller.Poller, *Server) {
	t.Helper()
	p := poller.New(&queueFetcher{readings: readings})
	s := New(&Config{}, p, metrics.New())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, p, s
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func TestReading_BeforeFirstPoll(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var body map[string]string
	if code := getJSON(t, ts.URL+"/api/reading", &body); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	if body["error"] == "" {
		t.Error("expected an error message")
	}
}

func TestReading(t *testing.T) {
	ts, p, _ := newTestServer(t, testReading(protocol.StateCharging, 7.4))
	if _, err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	var body map[string]any
	if code := getJSON(t, ts.URL+"/api/reading", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["charger_state"] != "charging" {
		t.Errorf("charger_state = %v, want charging", body["charger_state"])
	}
	if body["power"] != 7.4 {
		t.Errorf("power = %v, want 7.4", body["power"])
	}
	if body["timer_start"] != charger.NotSet {
		t.Errorf("timer_start = %v, want not_set", body["timer_start"])
	}
}

func TestStatus(t *testing.T) {
	ts, p, _ := newTestServer(t, testReading(protocol.StateStandby, 0))
	_, _ = p.Refresh(context.Background())
	_, _ = p.Refresh(context.Background()) // queue empty, times out

	var body map[string]any
	if code := getJSON(t, ts.URL+"/api/status", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if !strings.Contains(body["last_error"].(string), "No response from charger") {
		t.Errorf("last_error = %v", body["last_error"])
	}
	if body["poll_interval"] != "30s" {
		t.Errorf("poll_interval = %v, want 30s", body["poll_interval"])
	}
	reading, ok := body["reading"].(map[string]any)
	if !ok || reading["charger_state"] != "standby" {
		t.Errorf("reading = %v, want the standby reading kept", body["reading"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/reading", "application/json", nil)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, s := newTestServer(t)
	s.metrics.ObserveExchange("fetch_reading", time.Millisecond, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `beny_exchanges_total{operation="fetch_reading",result="ok"} 1`) {
		t.Error("/metrics is missing the exchange counter")
	}
}

func TestWebSocket_PushesReadings(t *testing.T) {
	ts, p, s := newTestServer(t,
		testReading(protocol.StateStandby, 0),
		testReading(protocol.StateCharging, 11.0),
	)
	if _, err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("handshake status = %d, want 101", resp.StatusCode)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if first["charger_state"] != "standby" {
		t.Errorf("first push = %v, want standby", first["charger_state"])
	}
	if s.GetActiveConnections() != 1 {
		t.Errorf("GetActiveConnections() = %d, want 1", s.GetActiveConnections())
	}

	if _, err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	var second map[string]any
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if second["charger_state"] != "charging" || second["power"] != 11.0 {
		t.Errorf("second push = %v", second)
	}
}

func TestWebSocket_ClientClose(t *testing.T) {
	ts, _, s := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.GetActiveConnections() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection still tracked after client close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStart_Shutdown(t *testing.T) {
	p := poller.New(&queueFetcher{readings: []*charger.Reading{testReading(protocol.StateStandby, 0)}})
	_, _ = p.Refresh(context.Background())
	m := metrics.New()
	s := New(&Config{Host: "127.0.0.1", Port: 0}, p, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/api/reading")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
