package signaling

import "sort"

func (h *Hub) armMaintenance() {
	if h.stopped {
		return
	}
	h.maintenance = h.clock.AfterFunc(h.cfg.CleanupInterval, func() {
		h.post(func() {
			if h.stopped {
				return
			}
			h.runMaintenance()
			h.armMaintenance()
		})
	})
}

// runMaintenance 清理无活动客户端与空主题
func (h *Hub) runMaintenance() {
	cutoff := h.clock.Now().Add(-h.cfg.staleAfter())

	var stale []string
	for id, c := range h.clients {
		if c.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	for _, id := range stale {
		log.Info("清理无活动客户端", "client", id)
		h.disconnect(id)
	}

	removed := 0
	for name, set := range h.topics {
		if len(set) == 0 {
			delete(h.topics, name)
			removed++
			h.bus.Emit(EventTopicDeleted, TopicEvent{Name: name})
		}
	}
	if len(stale) > 0 || removed > 0 {
		log.Debug("维护完成", "clients", len(stale), "topics", removed)
	}
}
