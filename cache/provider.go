package cache

import (
	"context"
	"time"
)

// Provider 缓存后端抽象，会话查找加速层通过它读写令牌索引
// 实现可以是 Redis 或进程内的 Ristretto。
type Provider interface {
	// Set 写入缓存项并设置过期时间
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Get 读取缓存项并反序列化到 dest，未命中返回 ErrCacheMiss
	Get(ctx context.Context, key string, dest interface{}) error

	// Delete 删除指定键
	Delete(ctx context.Context, key string) error

	// Exists 判断键是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// Close 释放后端资源
	Close() error

	// Name 返回后端名称
	Name() string
}

// ErrCacheMiss 表示键不存在，调用方据此回退到数据库扫描
var ErrCacheMiss = &cacheMissError{}

type cacheMissError struct{}

func (e *cacheMissError) Error() string {
	return "cache miss"
}

// IsCacheMiss 判断错误是否为缓存未命中
func IsCacheMiss(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*cacheMissError)
	return ok
}
