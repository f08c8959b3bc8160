package signaling

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-gossiphub/internal/core/eventbus"
	"github.com/dep2p/go-gossiphub/internal/core/transport"
	"github.com/dep2p/go-gossiphub/internal/util/logger"
)

var log = logger.Logger("hub")

// 事件名
const (
	EventClientJoined = "hub:client:joined"
	EventClientLeft   = "hub:client:left"
	EventTopicCreated = "hub:topic:created"
	EventTopicDeleted = "hub:topic:deleted"
)

// ClientEvent 客户端加入或离开
type ClientEvent struct {
	ID string
	IP string
}

// TopicEvent 主题创建或删除
type TopicEvent struct {
	Name string
}

// RemoteInfo 连接建立时的远端信息
type RemoteInfo struct {
	IP        string
	UserAgent string
}

// Metadata 客户端元数据
type Metadata struct {
	IP          string    `json:"ip"`
	UserAgent   string    `json:"userAgent,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// client 一个已连接的客户端
type client struct {
	id        string
	conn      transport.Conn
	meta      Metadata
	lastSeen  time.Time
	alive     bool
	topics    map[string]struct{}
	limiter   *rate.Limiter
	heartbeat *clock.Timer
}

// clientHandler 把连接事件投递回事件循环
type clientHandler struct {
	h  *Hub
	id string
}

func (c *clientHandler) OnMessage(payload []byte) {
	c.h.post(func() { c.h.handleMessage(c.id, payload) })
}

func (c *clientHandler) OnPong() {
	c.h.post(func() { c.h.onPong(c.id) })
}

func (c *clientHandler) OnClose(err error) {
	c.h.post(func() {
		if err != nil {
			log.Debug("客户端连接出错", "client", c.id, "err", err)
		}
		c.h.disconnect(c.id)
	})
}

// ============================================================================
//                              Hub
// ============================================================================

// Option 中心选项
type Option func(*Hub)

// WithClock 使用指定时钟
func WithClock(clk clock.Clock) Option {
	return func(h *Hub) {
		if clk != nil {
			h.clock = clk
		}
	}
}

// WithEventBus 把中心事件发布到总线
func WithEventBus(bus *eventbus.Bus) Option {
	return func(h *Hub) { h.bus = bus }
}

// Hub 信令中心
type Hub struct {
	cfg   Config
	clock clock.Clock
	bus   *eventbus.Bus

	events   chan func()
	done     chan struct{}
	loopDone chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	stats hubCounters

	// 以下字段只在事件循环中访问
	clients     map[string]*client
	topics      map[string]map[string]struct{}
	maintenance *clock.Timer
	stopped     bool
}

type hubCounters struct {
	totalConnections atomic.Uint64
	messagesIn       atomic.Uint64
	messagesOut      atomic.Uint64
	bytesIn          atomic.Uint64
	bytesOut         atomic.Uint64
	dropped          atomic.Uint64
}

// New 创建中心并启动事件循环，维护周期在 Start 之后开始
func New(cfg Config, opts ...Option) *Hub {
	h := &Hub{
		cfg:      cfg,
		clock:    clock.New(),
		events:   make(chan func(), 256),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
		clients:  make(map[string]*client),
		topics:   make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.loop()
	return h
}

func (h *Hub) loop() {
	defer close(h.loopDone)
	for {
		select {
		case fn := <-h.events:
			fn()
		case <-h.done:
			return
		}
	}
}

func (h *Hub) post(fn func()) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.events <- fn:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) call(fn func()) error {
	ran := make(chan struct{})
	if !h.post(func() { fn(); close(ran) }) {
		return ErrHubClosed
	}
	select {
	case <-ran:
		return nil
	case <-h.loopDone:
		select {
		case <-ran:
			return nil
		default:
			return ErrHubClosed
		}
	}
}

// Start 开启维护周期
func (h *Hub) Start(_ context.Context) error {
	var err error
	h.startOnce.Do(func() {
		err = h.call(h.armMaintenance)
		if err == nil {
			log.Info("信令中心已启动", "heartbeat", h.cfg.HeartbeatInterval, "cleanup", h.cfg.CleanupInterval)
		}
	})
	return err
}

// Close 断开所有客户端并停止事件循环，可重复调用
func (h *Hub) Close() error {
	var err error
	h.stopOnce.Do(func() {
		if cerr := h.call(func() { err = h.teardown() }); cerr != nil {
			err = cerr
		}
		close(h.done)
		<-h.loopDone
		log.Info("信令中心已关闭")
	})
	return err
}

func (h *Hub) teardown() error {
	h.stopped = true
	if h.maintenance != nil {
		h.maintenance.Stop()
		h.maintenance = nil
	}
	var errs error
	for id, c := range h.clients {
		if c.heartbeat != nil {
			c.heartbeat.Stop()
		}
		errs = multierr.Append(errs, c.conn.Close())
		delete(h.clients, id)
	}
	h.topics = make(map[string]map[string]struct{})
	return errs
}

// ============================================================================
//                              公开操作
// ============================================================================

// Accept 登记一个新客户端，发送 welcome 并开始心跳，返回分配的 clientId
func (h *Hub) Accept(conn transport.Conn, info RemoteInfo) (string, error) {
	var id string
	err := h.call(func() {
		if h.stopped {
			return
		}
		id = h.accept(conn, info)
	})
	if err == nil && id == "" {
		err = ErrHubClosed
	}
	return id, err
}

// HandleMessage 处理一条来自 clientID 的原始消息
func (h *Hub) HandleMessage(clientID string, raw []byte) error {
	return h.call(func() { h.handleMessage(clientID, raw) })
}

// RoomBroadcast 向频道内除 senderID 外的所有客户端广播
func (h *Hub) RoomBroadcast(senderID, channel string, data json.RawMessage) error {
	return h.call(func() { h.roomBroadcast(senderID, channel, data) })
}

// Relay 把 data 转发给 targetID
func (h *Hub) Relay(senderID, targetID string, data json.RawMessage) error {
	var err error
	if cerr := h.call(func() {
		if _, ok := h.clients[targetID]; !ok {
			err = ErrUnknownClient
			return
		}
		h.relay(senderID, targetID, data)
	}); cerr != nil {
		return cerr
	}
	return err
}

// Disconnect 断开客户端
func (h *Hub) Disconnect(clientID string) error {
	var err error
	if cerr := h.call(func() {
		if _, ok := h.clients[clientID]; !ok {
			err = ErrUnknownClient
			return
		}
		h.disconnect(clientID)
	}); cerr != nil {
		return cerr
	}
	return err
}

// RunMaintenance 立即执行一次维护
func (h *Hub) RunMaintenance() error {
	return h.call(h.runMaintenance)
}

// ============================================================================
//                              内部实现
// ============================================================================

func (h *Hub) accept(conn transport.Conn, info RemoteInfo) string {
	now := h.clock.Now()
	c := &client{
		id:       uuid.NewString(),
		conn:     conn,
		meta:     Metadata{IP: info.IP, UserAgent: info.UserAgent, ConnectedAt: now},
		lastSeen: now,
		alive:    true,
		topics:   make(map[string]struct{}),
	}
	if h.cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(h.cfg.RateLimit), h.cfg.RateBurst)
	}
	h.clients[c.id] = c
	h.stats.totalConnections.Add(1)
	h.armHeartbeat(c)

	go conn.Serve(&clientHandler{h: h, id: c.id})

	log.Info("客户端已连接", "client", c.id, "ip", info.IP)
	h.bus.Emit(EventClientJoined, ClientEvent{ID: c.id, IP: info.IP})

	h.sendJSON(c, welcomeMessage{Type: TypeWelcome, ClientID: c.id, IP: info.IP})
	return c.id
}

func (h *Hub) armHeartbeat(c *client) {
	id := c.id
	c.heartbeat = h.clock.AfterFunc(h.cfg.HeartbeatInterval, func() {
		h.post(func() { h.onHeartbeat(id) })
	})
}

// onHeartbeat 上一周期没有 pong 的客户端被断开，否则再次 ping
func (h *Hub) onHeartbeat(id string) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	c.heartbeat = nil
	if !c.alive {
		log.Info("客户端心跳超时", "client", id)
		h.disconnect(id)
		return
	}
	c.alive = false
	if err := c.conn.Ping(); err != nil {
		log.Debug("心跳发送失败", "client", id, "err", err)
		h.disconnect(id)
		return
	}
	h.armHeartbeat(c)
}

func (h *Hub) onPong(id string) {
	if c, ok := h.clients[id]; ok {
		c.alive = true
		c.lastSeen = h.clock.Now()
	}
}

// handleMessage 按消息类别分发；超限、超长、无法解析的消息直接丢弃
func (h *Hub) handleMessage(id string, raw []byte) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	now := h.clock.Now()
	c.lastSeen = now
	h.stats.messagesIn.Add(1)
	h.stats.bytesIn.Add(uint64(len(raw)))

	if h.cfg.MaxMessageSize > 0 && len(raw) > h.cfg.MaxMessageSize {
		h.stats.dropped.Add(1)
		log.Debug("丢弃超长消息", "client", id, "size", len(raw))
		return
	}
	if c.limiter != nil && !c.limiter.AllowN(now, 1) {
		h.stats.dropped.Add(1)
		return
	}

	msg, err := ParseInbound(raw)
	if err != nil {
		h.stats.dropped.Add(1)
		log.Debug("丢弃无效消息", "client", id, "err", err)
		return
	}

	switch msg.Kind {
	case KindSubscribe:
		h.subscribe(c, msg.Topics)
	case KindUnsubscribe:
		h.unsubscribe(c, msg.Topics)
	case KindPublish:
		h.publish(msg.Topic, msg.Data)
	case KindBroadcast:
		h.roomBroadcast(id, msg.Channel, msg.Data)
	case KindSignal:
		h.relay(id, msg.Target, msg.Data)
	case KindUnknown:
		log.Debug("忽略未知消息", "client", id, "type", msg.Type)
	}
}

func (h *Hub) subscribe(c *client, topics []string) {
	for _, name := range topics {
		set, ok := h.topics[name]
		if !ok {
			set = make(map[string]struct{})
			h.topics[name] = set
			h.bus.Emit(EventTopicCreated, TopicEvent{Name: name})
		}
		set[c.id] = struct{}{}
		c.topics[name] = struct{}{}
	}
}

// unsubscribe 空主题保留到下一次维护
func (h *Hub) unsubscribe(c *client, topics []string) {
	for _, name := range topics {
		if set, ok := h.topics[name]; ok {
			delete(set, c.id)
		}
		delete(c.topics, name)
	}
}

// publish 发给主题当前所有订阅者（含发布者）
func (h *Hub) publish(topic string, data json.RawMessage) {
	members := sortedMembers(h.topics[topic])
	if len(members) == 0 {
		return
	}
	out, err := json.Marshal(publishMessage{Type: TypePublish, Topic: topic, Data: rawOrNull(data)})
	if err != nil {
		log.Debug("编码 publish 失败", "topic", topic, "err", err)
		return
	}
	for _, id := range members {
		if c, ok := h.clients[id]; ok {
			h.send(c, out)
		}
	}
}

// roomBroadcast 发给频道内除发送者外的所有客户端
func (h *Hub) roomBroadcast(senderID, channel string, data json.RawMessage) {
	out, err := roomPayload(data, senderID, channel, h.clock.Now().UnixMilli())
	if err != nil {
		log.Debug("编码房间广播失败", "channel", channel, "err", err)
		return
	}
	for _, id := range sortedMembers(h.topics[channel]) {
		if id == senderID {
			continue
		}
		if c, ok := h.clients[id]; ok {
			h.send(c, out)
		}
	}
}

// relay 点对点转发，目标不存在时丢弃
func (h *Hub) relay(senderID, targetID string, data json.RawMessage) {
	target, ok := h.clients[targetID]
	if !ok {
		log.Debug("转发目标不存在", "from", senderID, "target", targetID)
		return
	}
	h.sendJSON(target, signalMessage{Type: TypeSignal, Sender: senderID, Data: rawOrNull(data)})
}

// disconnect 从所有主题移除并关闭连接
func (h *Hub) disconnect(id string) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
	for name := range c.topics {
		if set, ok := h.topics[name]; ok {
			delete(set, id)
		}
	}
	delete(h.clients, id)
	_ = c.conn.Close()

	log.Info("客户端已断开", "client", id)
	h.bus.Emit(EventClientLeft, ClientEvent{ID: id, IP: c.meta.IP})
}

func (h *Hub) sendJSON(c *client, v any) {
	out, err := json.Marshal(v)
	if err != nil {
		log.Debug("编码消息失败", "client", c.id, "err", err)
		return
	}
	h.send(c, out)
}

// send 发送失败的客户端被断开
func (h *Hub) send(c *client, out []byte) {
	if err := c.conn.Send(out); err != nil {
		log.Debug("发送失败", "client", c.id, "err", err)
		h.disconnect(c.id)
		return
	}
	h.stats.messagesOut.Add(1)
	h.stats.bytesOut.Add(uint64(len(out)))
}

func sortedMembers(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
