package gossip

import "encoding/json"

// ============================================================================
//                              状态同步
// ============================================================================

func (n *Node) update(key string, value json.RawMessage) {
	ts := n.now().UnixMilli()
	if cur, ok := n.state[key]; ok && ts <= cur.Timestamp {
		ts = cur.Timestamp + 1
	}
	n.state[key] = StateEntry{Value: value, Timestamp: ts}
	n.sync()
}

// sync 防抖后执行 runSync
func (n *Node) sync() {
	if n.stopped {
		return
	}
	n.debounce.Trigger()
}

// runSync 移除超时对端，然后向其余对端广播快照
func (n *Node) runSync() {
	if n.stopped {
		return
	}
	now := n.now()
	var evicted []string
	for _, addr := range sortedKeys(n.peers) {
		p, ok := n.peers[addr]
		if !ok {
			continue
		}
		if now.Sub(p.lastSeen) > n.cfg.StaleTimeout {
			log.Info("对端超时", "peer", addr, "lastSeen", p.lastSeen)
			evicted = append(evicted, addr)
			n.removePeer(addr)
		}
	}

	n.bus.Emit(EventSync, SyncEvent{Peers: len(n.peers), Evicted: evicted})
	if len(n.peers) == 0 {
		return
	}
	if err := n.broadcast(Message{Type: TypeState, Data: n.snapshot()}); err != nil {
		log.Error("广播快照失败", "err", err)
	}
}

// broadcast 序列化一次后发送给所有对端
func (n *Node) broadcast(msg Message) error {
	data, err := encodeMessage(msg, n.now())
	if err != nil {
		return err
	}
	for _, addr := range sortedKeys(n.peers) {
		if p, ok := n.peers[addr]; ok {
			n.sendTo(addr, p, data)
		}
	}
	return nil
}

func (n *Node) armSyncTimer() {
	n.syncTimer = n.clock.AfterFunc(n.cfg.SyncInterval, func() {
		n.post(func() {
			if n.stopped {
				return
			}
			n.sync()
			n.armSyncTimer()
		})
	})
}

// onMessage 处理入站消息，无法解析的消息直接丢弃
func (n *Node) onMessage(addr string, gen uint64, payload []byte) {
	p := n.peerFor(addr, gen)
	if p == nil {
		return
	}
	n.stats.messagesIn.Add(1)
	n.stats.bytesIn.Add(uint64(len(payload)))

	env, err := decodeEnvelope(payload)
	if err != nil {
		log.Debug("丢弃无效消息", "peer", addr, "err", err)
		return
	}

	switch env.Kind() {
	case KindState:
		snap, err := decodeSnapshot(env.Data)
		if err != nil {
			log.Debug("丢弃无效快照", "peer", addr, "err", err)
			return
		}
		n.mergeState(addr, snap)
	case KindUnknown:
		log.Debug("忽略未知消息", "peer", addr, "type", env.Type)
	}
}

// mergeState 合并对端快照并连接其中的新地址
func (n *Node) mergeState(from string, snap Snapshot) {
	if p, ok := n.peers[from]; ok {
		p.lastSeen = n.now()
	}

	if changed := Merge(n.state, snap.State); len(changed) > 0 {
		log.Debug("合并状态", "peer", from, "keys", len(changed))
		n.bus.Emit(EventStateMerged, MergeEvent{From: from, Keys: changed})
	}

	for _, addr := range snap.Known {
		if _, ok := n.known[addr]; ok {
			continue
		}
		if n.tombstoned(addr) {
			continue
		}
		n.connect(addr)
	}
}
