package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/metrics"
	"github.com/dep2p/go-gossiphub/internal/core/signaling"
	"github.com/dep2p/go-gossiphub/internal/core/transport"
)

// ============================================================================
// 测试替身
// ============================================================================

type fakeGossip struct {
	self      string
	connected []string
	connErr   error
	snap      gossip.Snapshot
}

func (f *fakeGossip) Self() string { return f.self }

func (f *fakeGossip) Connect(address string) error {
	if f.connErr != nil {
		return f.connErr
	}
	f.connected = append(f.connected, address)
	return nil
}

func (f *fakeGossip) Accept(conn transport.Conn, _ string) error {
	return conn.Close()
}

func (f *fakeGossip) GetState() (gossip.Snapshot, error) { return f.snap, nil }

type fakeHub struct {
	topics  []signaling.TopicInfo
	clients []signaling.ClientInfo
	err     error
}

func (f *fakeHub) Accept(conn transport.Conn, _ signaling.RemoteInfo) (string, error) {
	return "", signaling.ErrHubClosed
}

func (f *fakeHub) Topics() ([]signaling.TopicInfo, error)   { return f.topics, f.err }
func (f *fakeHub) Clients() ([]signaling.ClientInfo, error) { return f.clients, f.err }

type fakeMetrics struct{ snap metrics.Snapshot }

func (f fakeMetrics) Snapshot() metrics.Snapshot { return f.snap }

func newTestServer(deps Deps) *Server {
	return New(Config{
		Listen:     "127.0.0.1:0",
		ClientConn: transport.DefaultOptions(),
		PeerConn:   transport.DefaultOptions(),
	}, deps)
}

func do(t *testing.T, h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ============================================================================
// 查询端点
// ============================================================================

func TestServer_Status(t *testing.T) {
	snap := metrics.Aggregate(
		gossip.Stats{Peers: 2, Known: 3, Keys: 4, MessagesIn: 5, BytesIn: 100},
		signaling.Stats{Connections: 1, TotalConnections: 6, Topics: map[string]int{"a": 1, "b": 2}},
		time.Unix(0, 0), time.Unix(90, 0),
	)
	s := newTestServer(Deps{
		Gossip:  &fakeGossip{self: "127.0.0.1:7400"},
		Hub:     &fakeHub{},
		Metrics: fakeMetrics{snap: snap},
	})

	rec := do(t, s.Handler(), http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "127.0.0.1:7400", resp.Address)
	assert.Equal(t, 90.0, resp.UptimeSeconds)
	assert.Equal(t, 2, resp.Peers)
	assert.Equal(t, 3, resp.Known)
	assert.Equal(t, 4, resp.Keys)
	assert.Equal(t, 1, resp.Clients)
	assert.Equal(t, 2, resp.Topics)
	assert.Equal(t, uint64(6), resp.Connections)
	assert.Equal(t, uint64(5), resp.Messages)
	assert.Equal(t, uint64(100), resp.Bytes)
}

func TestServer_TopicsAndClients(t *testing.T) {
	hub := &fakeHub{
		topics: []signaling.TopicInfo{{Name: "room"}},
		clients: []signaling.ClientInfo{
			{ID: "c1", Topics: []string{"room"}},
		},
	}
	s := newTestServer(Deps{Gossip: &fakeGossip{}, Hub: hub, Metrics: fakeMetrics{}})

	t.Run("topics", func(t *testing.T) {
		rec := do(t, s.Handler(), http.MethodGet, "/topics", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var topics []signaling.TopicInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &topics))
		require.Len(t, topics, 1)
		assert.Equal(t, "room", topics[0].Name)
	})

	t.Run("clients", func(t *testing.T) {
		rec := do(t, s.Handler(), http.MethodGet, "/clients", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var clients []signaling.ClientInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &clients))
		require.Len(t, clients, 1)
		assert.Equal(t, "c1", clients[0].ID)
		assert.Equal(t, []string{"room"}, clients[0].Topics)
	})

	t.Run("empty list is array", func(t *testing.T) {
		empty := newTestServer(Deps{Gossip: &fakeGossip{}, Hub: &fakeHub{}, Metrics: fakeMetrics{}})
		rec := do(t, empty.Handler(), http.MethodGet, "/topics", "")
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("hub closed", func(t *testing.T) {
		closed := newTestServer(Deps{
			Gossip:  &fakeGossip{},
			Hub:     &fakeHub{err: signaling.ErrHubClosed},
			Metrics: fakeMetrics{},
		})
		rec := do(t, closed.Handler(), http.MethodGet, "/clients", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestServer_GossipState(t *testing.T) {
	g := &fakeGossip{snap: gossip.Snapshot{
		Peers: []string{"b:1"},
		Known: []string{"b:1", "c:1"},
		State: map[string]gossip.StateEntry{
			"k": {Value: json.RawMessage(`42`), Timestamp: 1000},
		},
	}}
	s := newTestServer(Deps{Gossip: g, Hub: &fakeHub{}, Metrics: fakeMetrics{}})

	rec := do(t, s.Handler(), http.MethodGet, "/gossip/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	state := body["state"].(map[string]any)
	entry := state["k"].(map[string]any)
	assert.Equal(t, 42.0, entry["value"])
	assert.Equal(t, 1000.0, entry["timestampMs"])
}

func TestServer_AddPeer(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		g := &fakeGossip{self: "a:1"}
		s := newTestServer(Deps{Gossip: g, Hub: &fakeHub{}, Metrics: fakeMetrics{}})

		rec := do(t, s.Handler(), http.MethodPost, "/gossip/peers", `{"peer":" b:1 "}`)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, []string{"b:1"}, g.connected)
	})

	t.Run("empty peer", func(t *testing.T) {
		g := &fakeGossip{}
		s := newTestServer(Deps{Gossip: g, Hub: &fakeHub{}, Metrics: fakeMetrics{}})

		rec := do(t, s.Handler(), http.MethodPost, "/gossip/peers", `{"peer":""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, g.connected)
	})

	t.Run("bad body", func(t *testing.T) {
		s := newTestServer(Deps{Gossip: &fakeGossip{}, Hub: &fakeHub{}, Metrics: fakeMetrics{}})
		rec := do(t, s.Handler(), http.MethodPost, "/gossip/peers", `not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("self connect", func(t *testing.T) {
		g := &fakeGossip{connErr: gossip.ErrSelfConnect}
		s := newTestServer(Deps{Gossip: g, Hub: &fakeHub{}, Metrics: fakeMetrics{}})
		rec := do(t, s.Handler(), http.MethodPost, "/gossip/peers", `{"peer":"a:1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("node closed", func(t *testing.T) {
		g := &fakeGossip{connErr: gossip.ErrNodeClosed}
		s := newTestServer(Deps{Gossip: g, Hub: &fakeHub{}, Metrics: fakeMetrics{}})
		rec := do(t, s.Handler(), http.MethodPost, "/gossip/peers", `{"peer":"b:1"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		s := newTestServer(Deps{Gossip: &fakeGossip{}, Hub: &fakeHub{}, Metrics: fakeMetrics{}})
		rec := do(t, s.Handler(), http.MethodGet, "/gossip/peers", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServer_Metrics(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(Deps{Gossip: &fakeGossip{}, Hub: &fakeHub{}, Metrics: fakeMetrics{}})
		rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
		reg.MustRegister(counter)
		counter.Add(3)

		s := newTestServer(Deps{Gossip: &fakeGossip{}, Hub: &fakeHub{}, Metrics: fakeMetrics{}, Registry: reg})
		rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "test_total 3")
	})
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(Deps{Gossip: &fakeGossip{}, Hub: &fakeHub{}, Metrics: fakeMetrics{}})
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestClientIP(t *testing.T) {
	t.Run("forwarded", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		assert.Equal(t, "203.0.113.9", clientIP(r))
	})

	t.Run("remote addr", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.RemoteAddr = "192.0.2.1:5555"
		assert.Equal(t, "192.0.2.1", clientIP(r))
	})

	t.Run("no port", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.RemoteAddr = "192.0.2.1"
		assert.Equal(t, "192.0.2.1", clientIP(r))
	})
}

// ============================================================================
// WebSocket 端点
// ============================================================================

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestServer_ClientSocket(t *testing.T) {
	hub := signaling.New(signaling.DefaultConfig())
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(func() { _ = hub.Close() })

	s := newTestServer(Deps{Gossip: &fakeGossip{}, Hub: hub, Metrics: fakeMetrics{}})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	header := http.Header{}
	header.Set("X-Forwarded-For", "198.51.100.7")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), header)
	require.NoError(t, err)
	defer ws.Close()

	welcome := readJSON(t, ws)
	assert.Equal(t, signaling.TypeWelcome, welcome["type"])
	assert.NotEmpty(t, welcome["clientId"])
	assert.Equal(t, "198.51.100.7", welcome["ip"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","topics":["room"]}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"publish","topic":"room","data":{"n":1}}`)))

	msg := readJSON(t, ws)
	assert.Equal(t, signaling.TypePublish, msg["type"])
	assert.Equal(t, "room", msg["topic"])
	assert.Equal(t, map[string]any{"n": 1.0}, msg["data"])

	clients, err := hub.Clients()
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, []string{"room"}, clients[0].Topics)
}

// TestServer_SlowClient 不读取的客户端不会拖住 hub，发送队列满后被断开
func TestServer_SlowClient(t *testing.T) {
	hub := signaling.New(signaling.DefaultConfig())
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(func() { _ = hub.Close() })

	opts := transport.DefaultOptions()
	opts.WriteTimeout = 30 * time.Second
	opts.SendQueueSize = 8
	s := New(Config{Listen: "127.0.0.1:0", ClientConn: opts, PeerConn: opts},
		Deps{Gossip: &fakeGossip{}, Hub: hub, Metrics: fakeMetrics{}})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), nil)
	require.NoError(t, err)
	defer ws.Close()
	readJSON(t, ws)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","topics":["room"]}`)))
	require.Eventually(t, func() bool {
		stats, err := hub.Stats()
		return err == nil && stats.Topics["room"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	// 此后客户端不再读取
	payload, err := json.Marshal(strings.Repeat("x", 1<<20))
	require.NoError(t, err)
	start := time.Now()
	for i := 0; i < 128; i++ {
		require.NoError(t, hub.RoomBroadcast("server", "room", payload))
	}
	assert.Less(t, time.Since(start), 3*time.Second)

	start = time.Now()
	stats, err := hub.Stats()
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 0, stats.Connections)
}

// TestServer_OversizedFrame 超过 MaxMessageSize 的帧在读取阶段就关闭连接
func TestServer_OversizedFrame(t *testing.T) {
	hub := signaling.New(signaling.DefaultConfig())
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(func() { _ = hub.Close() })

	opts := transport.DefaultOptions()
	opts.MaxMessageSize = 1024
	s := New(Config{Listen: "127.0.0.1:0", ClientConn: opts, PeerConn: opts},
		Deps{Gossip: &fakeGossip{}, Hub: hub, Metrics: fakeMetrics{}})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), nil)
	require.NoError(t, err)
	defer ws.Close()
	readJSON(t, ws)

	frame := `{"type":"publish","topic":"room","data":"` + strings.Repeat("x", 4096) + `"}`
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "err: %v", err)

	require.Eventually(t, func() bool {
		stats, err := hub.Stats()
		return err == nil && stats.Connections == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_GossipSocket(t *testing.T) {
	t.Run("missing address header", func(t *testing.T) {
		s := newTestServer(Deps{Gossip: &fakeGossip{self: "a:1"}, Hub: &fakeHub{}, Metrics: fakeMetrics{}})
		srv := httptest.NewServer(s.Handler())
		t.Cleanup(srv.Close)

		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, transport.GossipPath), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("self address", func(t *testing.T) {
		s := newTestServer(Deps{Gossip: &fakeGossip{self: "a:1"}, Hub: &fakeHub{}, Metrics: fakeMetrics{}})
		srv := httptest.NewServer(s.Handler())
		t.Cleanup(srv.Close)

		header := http.Header{}
		header.Set(transport.HeaderGossipAddress, "a:1")
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, transport.GossipPath), header)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("state replicates", func(t *testing.T) {
		mux := http.NewServeMux()
		srv := httptest.NewUnstartedServer(mux)
		addrA := srv.Listener.Addr().String()

		nodeA, err := gossip.New(gossip.DefaultConfig(addrA), transport.DialerFunc(
			func(context.Context, string) (transport.Conn, error) { return nil, transport.ErrClosed },
		))
		require.NoError(t, err)
		require.NoError(t, nodeA.Start(context.Background()))
		t.Cleanup(func() { _ = nodeA.Destroy() })

		s := newTestServer(Deps{Gossip: nodeA, Hub: &fakeHub{}, Metrics: fakeMetrics{}})
		mux.Handle("/", s.Handler())
		srv.Start()
		t.Cleanup(srv.Close)

		addrB := "127.0.0.1:1"
		nodeB, err := gossip.New(gossip.DefaultConfig(addrB),
			transport.NewWSDialer(addrB, transport.GossipPath, transport.DefaultOptions()))
		require.NoError(t, err)
		require.NoError(t, nodeB.Start(context.Background()))
		t.Cleanup(func() { _ = nodeB.Destroy() })

		require.NoError(t, nodeB.Update("greeting", "hello"))
		require.NoError(t, nodeB.Connect(addrA))

		require.Eventually(t, func() bool {
			snap, err := nodeA.GetState()
			if err != nil {
				return false
			}
			entry, ok := snap.State["greeting"]
			return ok && bytes.Equal(entry.Value, []byte(`"hello"`))
		}, 5*time.Second, 20*time.Millisecond)

		snap, err := nodeA.GetState()
		require.NoError(t, err)
		assert.Contains(t, snap.Peers, addrB)
	})
}

func TestServer_StartStop(t *testing.T) {
	s := newTestServer(Deps{Gossip: &fakeGossip{}, Hub: &fakeHub{}, Metrics: fakeMetrics{}})
	require.NoError(t, s.Start(context.Background()))
	// 重复启动无副作用
	require.NoError(t, s.Start(context.Background()))

	addr := s.Addr()
	assert.NotEqual(t, "127.0.0.1:0", addr)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
