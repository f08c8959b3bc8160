package engine

// Engine 键值存储引擎
type Engine interface {
	// Get 获取值，键不存在时返回 ErrNotFound
	Get(key []byte) ([]byte, error)

	// Put 设置键值对
	Put(key, value []byte) error

	// Delete 删除键，键不存在不是错误
	Delete(key []byte) error

	// Has 检查键是否存在
	Has(key []byte) (bool, error)

	// NewBatch 创建批量写入
	//
	// 批量写入在 Write 时一次性提交。
	NewBatch() Batch

	// NewPrefixIterator 创建前缀迭代器，调用者负责 Close
	NewPrefixIterator(prefix []byte) Iterator

	// Sync 同步数据到磁盘
	Sync() error

	// Close 关闭引擎，可重复调用
	Close() error
}

// Batch 批量写入
//
// Batch 不是线程安全的，不应在多个 goroutine 中并发使用。
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)

	// Write 提交所有操作，之后批量对象被重置
	Write() error

	// Reset 丢弃未提交的操作
	Reset()

	// Size 返回未提交的操作数量
	Size() int
}

// Iterator 迭代器
//
// 迭代器保持创建时的快照视图，不受后续写入影响。
//
//	iter := eng.NewPrefixIterator(prefix)
//	defer iter.Close()
//
//	for iter.First(); iter.Valid(); iter.Next() {
//	    key, value := iter.Key(), iter.Value()
//	}
//
//	if err := iter.Error(); err != nil {
//	    return err
//	}
type Iterator interface {
	First() bool
	Next() bool
	Valid() bool

	// Key 返回当前键的副本
	Key() []byte

	// Value 返回当前值的副本
	Value() []byte

	Close()
	Error() error
}
