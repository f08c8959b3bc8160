package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/signaling"
	"github.com/dep2p/go-gossiphub/internal/core/transport"
)

// ============================================================================
// 查询端点
// ============================================================================

// StatusResponse /status 响应
type StatusResponse struct {
	Address       string  `json:"address"`
	UptimeSeconds float64 `json:"uptimeSeconds"`

	Peers    int `json:"peers"`
	Known    int `json:"known"`
	Keys     int `json:"keys"`
	Clients  int `json:"clients"`
	Topics   int `json:"topics"`
	Retrying int `json:"retrying"`

	Connections uint64  `json:"connections"`
	Messages    uint64  `json:"messages"`
	Bytes       uint64  `json:"bytes"`
	MessageRate float64 `json:"messageRate"`
	ByteRate    float64 `json:"byteRate"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.deps.Metrics.Snapshot()
	writeJSON(w, http.StatusOK, StatusResponse{
		Address:       s.deps.Gossip.Self(),
		UptimeSeconds: snap.Uptime.Seconds(),
		Peers:         snap.Gossip.Peers,
		Known:         snap.Gossip.Known,
		Keys:          snap.Gossip.Keys,
		Clients:       snap.Hub.Connections,
		Topics:        len(snap.Hub.Topics),
		Retrying:      snap.Gossip.Retrying,
		Connections:   snap.Connections,
		Messages:      snap.Messages,
		Bytes:         snap.Bytes,
		MessageRate:   snap.MessageRate,
		ByteRate:      snap.ByteRate,
	})
}

func (s *Server) handleTopics(w http.ResponseWriter, _ *http.Request) {
	topics, err := s.deps.Hub.Topics()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if topics == nil {
		topics = []signaling.TopicInfo{}
	}
	writeJSON(w, http.StatusOK, topics)
}

func (s *Server) handleClients(w http.ResponseWriter, _ *http.Request) {
	clients, err := s.deps.Hub.Clients()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if clients == nil {
		clients = []signaling.ClientInfo{}
	}
	writeJSON(w, http.StatusOK, clients)
}

func (s *Server) handleGossipState(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.deps.Gossip.GetState()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type addPeerRequest struct {
	Peer string `json:"peer"`
}

func (s *Server) handleAddPeer(w http.ResponseWriter, r *http.Request) {
	var req addPeerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Peer = strings.TrimSpace(req.Peer)
	if req.Peer == "" {
		writeError(w, http.StatusBadRequest, "peer is required")
		return
	}

	if err := s.deps.Gossip.Connect(req.Peer); err != nil {
		writeServiceError(w, err)
		return
	}
	log.Info("已请求连接节点", "peer", req.Peer)
	writeJSON(w, http.StatusAccepted, map[string]string{"peer": req.Peer})
}

func (s *Server) metricsHandler() http.Handler {
	if s.deps.Registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ============================================================================
// WebSocket 端点
// ============================================================================

func (s *Server) handleClientSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写入错误响应
		log.Debug("客户端升级失败", "remote", r.RemoteAddr, "err", err)
		return
	}

	conn := transport.NewWSConn(ws, r.RemoteAddr, s.cfg.ClientConn)
	info := signaling.RemoteInfo{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if _, err := s.deps.Hub.Accept(conn, info); err != nil {
		log.Debug("信令中心拒绝连接", "remote", r.RemoteAddr, "err", err)
		_ = conn.Close()
	}
}

func (s *Server) handleGossipSocket(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.Header.Get(transport.HeaderGossipAddress))
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing "+transport.HeaderGossipAddress+" header")
		return
	}
	if address == s.deps.Gossip.Self() {
		writeError(w, http.StatusBadRequest, "cannot connect to self")
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("节点升级失败", "peer", address, "err", err)
		return
	}

	conn := transport.NewWSConn(ws, address, s.cfg.PeerConn)
	if err := s.deps.Gossip.Accept(conn, address); err != nil {
		log.Debug("节点拒绝入站连接", "peer", address, "err", err)
		_ = conn.Close()
	}
}

// ============================================================================
// 辅助函数
// ============================================================================

// clientIP 优先取 X-Forwarded-For 的第一个地址
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gossip.ErrInvalidAddress), errors.Is(err, gossip.ErrSelfConnect):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, gossip.ErrNodeClosed), errors.Is(err, signaling.ErrHubClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Debug("写入响应失败", "err", err)
	}
}
