package badger

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-gossiphub/internal/core/storage/engine"
)

// WriteBatch BadgerDB 批量写入实现
//
// badger 的 WriteBatch 在 Flush 或 Cancel 后不能复用，
// 因此底层对象在第一次写入操作时才创建。
type WriteBatch struct {
	db    *Engine
	batch *badger.WriteBatch
	count int
	err   error
}

var _ engine.Batch = (*WriteBatch)(nil)

func (b *WriteBatch) current() *badger.WriteBatch {
	if b.batch == nil {
		b.batch = b.db.db.NewWriteBatch()
	}
	return b.batch
}

// Put 添加一个写入操作到批量中
func (b *WriteBatch) Put(key, value []byte) {
	if len(key) == 0 || b.err != nil || b.db.closed.Load() {
		return
	}
	// 错误保留到 Write 时返回
	b.err = b.current().Set(key, value)
	b.count++
}

// Delete 添加一个删除操作到批量中
func (b *WriteBatch) Delete(key []byte) {
	if len(key) == 0 || b.err != nil || b.db.closed.Load() {
		return
	}
	b.err = b.current().Delete(key)
	b.count++
}

// Write 执行批量写入
func (b *WriteBatch) Write() error {
	if b.db.closed.Load() {
		return engine.ErrClosed
	}
	if b.err != nil {
		err := b.err
		b.Reset()
		return convertError(err)
	}
	if b.batch == nil {
		return nil
	}
	err := b.batch.Flush()
	b.batch, b.count = nil, 0
	return convertError(err)
}

// Reset 丢弃未提交的操作
func (b *WriteBatch) Reset() {
	if b.batch != nil {
		b.batch.Cancel()
	}
	b.batch, b.count, b.err = nil, 0, nil
}

// Size 返回批量中的操作数量
func (b *WriteBatch) Size() int {
	return b.count
}
