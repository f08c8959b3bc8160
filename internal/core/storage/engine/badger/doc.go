// Package badger 提供基于 BadgerDB 的存储引擎实现
//
// # 使用示例
//
//	db, err := badger.New(engine.DefaultConfig("/data/gossiphub.db"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Put([]byte("key"), []byte("value")); err != nil {
//	    return err
//	}
//	value, err := db.Get([]byte("key"))
//
// 测试使用 engine.InMemoryConfig()。
package badger
