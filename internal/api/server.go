package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/metrics"
	"github.com/dep2p/go-gossiphub/internal/core/signaling"
	"github.com/dep2p/go-gossiphub/internal/core/transport"
	"github.com/dep2p/go-gossiphub/internal/util/logger"
)

var log = logger.Logger("api")

// GossipService 服务使用的 gossip 节点操作
type GossipService interface {
	Self() string
	Connect(address string) error
	Accept(conn transport.Conn, address string) error
	GetState() (gossip.Snapshot, error)
}

// HubService 服务使用的信令中心操作
type HubService interface {
	Accept(conn transport.Conn, info signaling.RemoteInfo) (string, error)
	Topics() ([]signaling.TopicInfo, error)
	Clients() ([]signaling.ClientInfo, error)
}

// MetricsSource 指标快照来源
type MetricsSource interface {
	Snapshot() metrics.Snapshot
}

// Config 服务配置
type Config struct {
	// Listen 监听地址
	Listen string

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	// ClientConn /ws 连接参数
	ClientConn transport.Options
	// PeerConn /gossip 连接参数
	PeerConn transport.Options
}

// Deps 服务依赖
type Deps struct {
	Gossip  GossipService
	Hub     HubService
	Metrics MetricsSource

	// Registry 为 nil 时 /metrics 返回 404
	Registry prometheus.Gatherer
}

// Server 查询与 WebSocket 服务
type Server struct {
	cfg      Config
	deps     Deps
	upgrader *websocket.Upgrader
	router   *mux.Router

	server   *http.Server
	listener net.Listener
	running  bool
	mu       sync.Mutex
}

// New 创建服务
func New(cfg Config, deps Deps) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		upgrader: transport.NewUpgrader(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(accessLog())

	r.Methods(http.MethodGet).Path("/status").HandlerFunc(s.handleStatus)
	r.Methods(http.MethodGet).Path("/topics").HandlerFunc(s.handleTopics)
	r.Methods(http.MethodGet).Path("/clients").HandlerFunc(s.handleClients)
	r.Methods(http.MethodGet).Path("/gossip/state").HandlerFunc(s.handleGossipState)
	r.Methods(http.MethodPost).Path("/gossip/peers").HandlerFunc(s.handleAddPeer)
	r.Methods(http.MethodGet).Path("/metrics").Handler(s.metricsHandler())
	r.Methods(http.MethodGet).Path("/health").HandlerFunc(s.handleHealth)

	r.Methods(http.MethodGet).Path("/ws").HandlerFunc(s.handleClientSocket)
	r.Methods(http.MethodGet).Path(transport.GossipPath).HandlerFunc(s.handleGossipSocket)

	// pprof 端点
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)

	return r
}

// Handler 返回路由，测试中可直接挂到 httptest.Server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP 服务异常退出", "err", err)
		}
	}()

	s.running = true
	log.Info("HTTP 服务已启动", "addr", listener.Addr().String())
	return nil
}

// Stop 停止服务
//
// 已升级的 WebSocket 连接不受 Shutdown 管理，由信令中心与 gossip 节点各自关闭。
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error("关闭 HTTP 服务失败", "err", err)
		return err
	}

	s.running = false
	log.Info("HTTP 服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Listen
}
