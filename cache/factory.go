package cache

import (
	"context"
	"fmt"
	"log"

	"github.com/anoixa/cerberus/cache/memory"
	"github.com/anoixa/cerberus/cache/redis"
	"github.com/anoixa/cerberus/config"
)

// Factory 缓存工厂 - 按配置创建缓存提供者
type Factory struct {
	provider Provider
}

// NewFactory 创建缓存工厂
// cache_type 为 none 时不创建提供者，token 查找加速随之关闭。
func NewFactory(cfg *config.Config) (*Factory, error) {
	factory := &Factory{}

	switch cfg.CacheType {
	case "", "none":
		log.Println("[CacheFactory] Cache disabled")
		return factory, nil

	case "memory":
		memProvider, err := memory.NewMemory(memory.Config{
			NumCounters: 100000,
			MaxCost:     64 << 20, // 64MB
			BufferItems: 64,
			Metrics:     false,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		factory.provider = memProvider

	case "redis":
		redisProvider, err := redis.NewRedis(cfg.CacheRedisAddr, cfg.CacheRedisPassword, cfg.CacheRedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis cache: %w", err)
		}
		factory.provider = redisProvider

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.CacheType)
	}

	log.Printf("[CacheFactory] Cache provider '%s' initialized", factory.provider.Name())
	return factory, nil
}

// GetProvider 获取缓存提供者，缓存关闭时返回 nil
func (f *Factory) GetProvider() Provider {
	return f.provider
}

// Ping 检查缓存可用性
func (f *Factory) Ping() error {
	if f.provider == nil {
		return nil
	}
	_, err := f.provider.Exists(context.Background(), "ping")
	return err
}

// Close 关闭缓存连接
func (f *Factory) Close() error {
	if f.provider != nil {
		return f.provider.Close()
	}
	return nil
}
