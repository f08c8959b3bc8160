package gossip

import (
	"encoding/json"
	"sort"
)

// StateEntry 一个 key 的复制值
type StateEntry struct {
	// Value 任意 JSON 值
	Value json.RawMessage `json:"value"`
	// Timestamp 写入时间（Unix 毫秒），由写入方的时钟给出
	Timestamp int64 `json:"timestampMs"`
}

// Snapshot 节点状态快照，也是 state 消息的数据体
type Snapshot struct {
	Peers []string              `json:"peers"`
	Known []string              `json:"known"`
	State map[string]StateEntry `json:"state"`
}

// Wins 判断 incoming 是否应替换 local
//
// 时间戳严格更大才替换，相等时保留本地值。
func Wins(local StateEntry, incoming StateEntry) bool {
	return incoming.Timestamp > local.Timestamp
}

// Merge 把 incoming 按 LWW 合并进 local，返回发生变化的 key（已排序）
func Merge(local, incoming map[string]StateEntry) []string {
	var changed []string
	for key, in := range incoming {
		if cur, ok := local[key]; ok && !Wins(cur, in) {
			continue
		}
		local[key] = in
		changed = append(changed, key)
	}
	sort.Strings(changed)
	return changed
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
