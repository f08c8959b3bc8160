package signaling

import (
	"sort"
	"time"
)

// Stats 中心统计快照
type Stats struct {
	Connections      int            `json:"connections"`
	TotalConnections uint64         `json:"totalConnections"`
	Topics           map[string]int `json:"topics"`
	MessagesIn       uint64         `json:"messagesIn"`
	MessagesOut      uint64         `json:"messagesOut"`
	BytesIn          uint64         `json:"bytesIn"`
	BytesOut         uint64         `json:"bytesOut"`
	Dropped          uint64         `json:"dropped"`
}

// ClientInfo 客户端视图
type ClientInfo struct {
	ID       string    `json:"id"`
	Metadata Metadata  `json:"metadata"`
	LastSeen time.Time `json:"lastSeen"`
	Alive    bool      `json:"alive"`
	Topics   []string  `json:"topics"`
}

// TopicInfo 主题视图
type TopicInfo struct {
	Name        string       `json:"name"`
	Subscribers []ClientInfo `json:"subscribers"`
}

// Stats 返回统计快照
func (h *Hub) Stats() (Stats, error) {
	s := Stats{Topics: map[string]int{}}
	err := h.call(func() {
		s.Connections = len(h.clients)
		for name, set := range h.topics {
			s.Topics[name] = len(set)
		}
	})
	s.TotalConnections = h.stats.totalConnections.Load()
	s.MessagesIn = h.stats.messagesIn.Load()
	s.MessagesOut = h.stats.messagesOut.Load()
	s.BytesIn = h.stats.bytesIn.Load()
	s.BytesOut = h.stats.bytesOut.Load()
	s.Dropped = h.stats.dropped.Load()
	return s, err
}

// Clients 返回所有客户端，按 id 排序
func (h *Hub) Clients() ([]ClientInfo, error) {
	var out []ClientInfo
	err := h.call(func() {
		out = make([]ClientInfo, 0, len(h.clients))
		for _, id := range sortedMembers(clientSet(h.clients)) {
			out = append(out, h.clients[id].info())
		}
	})
	return out, err
}

// Topics 返回所有主题及订阅者，按名称排序
func (h *Hub) Topics() ([]TopicInfo, error) {
	var out []TopicInfo
	err := h.call(func() {
		names := make([]string, 0, len(h.topics))
		for name := range h.topics {
			names = append(names, name)
		}
		sort.Strings(names)

		out = make([]TopicInfo, 0, len(names))
		for _, name := range names {
			ti := TopicInfo{Name: name, Subscribers: []ClientInfo{}}
			for _, id := range sortedMembers(h.topics[name]) {
				if c, ok := h.clients[id]; ok {
					ti.Subscribers = append(ti.Subscribers, c.info())
				}
			}
			out = append(out, ti)
		}
	})
	return out, err
}

func (c *client) info() ClientInfo {
	topics := sortedMembers(c.topics)
	return ClientInfo{
		ID:       c.id,
		Metadata: c.meta,
		LastSeen: c.lastSeen,
		Alive:    c.alive,
		Topics:   topics,
	}
}

func clientSet(clients map[string]*client) map[string]struct{} {
	set := make(map[string]struct{}, len(clients))
	for id := range clients {
		set[id] = struct{}{}
	}
	return set
}
