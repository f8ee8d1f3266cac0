package repository

import (
	"context"
	"errors"
)

// 持久化集合名称
const (
	CollectionTasks         = "tasks"
	CollectionArchivedTasks = "archived_tasks"
	CollectionUserHandles   = "user_handles"
)

var (
	// ErrDecodeFailed 持久化内容无法解析（文件损坏等）
	ErrDecodeFailed = errors.New("repository: decode failed")
	// ErrEncodeFailed 数据无法序列化
	ErrEncodeFailed = errors.New("repository: encode failed")
)

// SnapshotStore 整集合读写的键值存储
//
// 每次 Save 都以整个集合替换旧内容，调用方不会观察到部分写入。
// Load 在集合不存在时返回 (false, nil)。
type SnapshotStore interface {
	// Load 读取集合到 out
	Load(ctx context.Context, name string, out any) (bool, error)

	// Save 以 v 覆盖整个集合
	Save(ctx context.Context, name string, v any) error

	// Close 释放底层资源
	Close(ctx context.Context) error
}

// Pinger 支持健康检查的存储
type Pinger interface {
	Ping(ctx context.Context) error
}
