package core

import (
	"context"
	"time"

	"github.com/anoixa/cerberus/cache"
	"github.com/anoixa/cerberus/database"
)

func checkDatabaseHealth(factory *database.Factory) string {
	if factory == nil {
		return "not initialized"
	}
	if err := factory.Ping(); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

func checkCacheHealth(cacheFactory *cache.Factory) string {
	if cacheFactory == nil {
		return "not initialized"
	}

	provider := cacheFactory.GetProvider()
	if provider == nil {
		// 缓存是可选加速层，未启用不算故障
		return "disabled"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := provider.Exists(ctx, "health:probe"); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}
