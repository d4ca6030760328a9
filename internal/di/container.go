package di

import (
	"fmt"
	"log"

	"github.com/anoixa/cerberus/cache"
	"github.com/anoixa/cerberus/config"
	"github.com/anoixa/cerberus/database"
	"github.com/anoixa/cerberus/internal/auth"
	"github.com/anoixa/cerberus/internal/repositories"
	cryptopackage "github.com/anoixa/cerberus/utils/crypto"
)

// Container 依赖注入容器 - 管理所有服务的生命周期
// 显式装配取代进程级全局访问器，调用方只拿自己需要的依赖。
type Container struct {
	config          *config.Config
	databaseFactory *database.Factory
	cacheFactory    *cache.Factory
	repositories    *repositories.Repositories
	sessionService  *auth.SessionService
	loginService    *auth.LoginService
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// Init 初始化所有服务
func (c *Container) Init() error {
	log.Println("Initializing DI container...")

	factory, err := database.NewFactory(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize database factory: %w", err)
	}
	c.databaseFactory = factory

	cacheFactory, err := cache.NewFactory(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize cache factory: %w", err)
	}
	c.cacheFactory = cacheFactory

	c.repositories = repositories.NewRepositories(factory.GetProvider())

	if err := c.initServices(); err != nil {
		return err
	}

	log.Println("DI container initialized successfully")
	return nil
}

// initServices 初始化认证服务
func (c *Container) initServices() error {
	var hasher cryptopackage.Hasher
	if c.config.TokenHashEnabled {
		h, err := cryptopackage.NewHasher(c.config.TokenHashDriver)
		if err != nil {
			return fmt.Errorf("failed to initialize token hasher: %w", err)
		}
		hasher = h
	}

	codec := auth.NewTokenCodec(c.config)

	c.sessionService = auth.NewSessionService(
		c.config,
		codec,
		hasher,
		c.repositories.Sessions,
		c.repositories.Devices,
		c.cacheFactory.GetProvider(),
	)

	c.loginService = auth.NewLoginService(c.repositories.Accounts, c.sessionService)
	return nil
}

// GetConfig 获取配置
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetDatabaseFactory 获取数据库工厂
func (c *Container) GetDatabaseFactory() *database.Factory {
	return c.databaseFactory
}

// GetDatabaseProvider 获取数据库提供者
func (c *Container) GetDatabaseProvider() database.Provider {
	if c.databaseFactory == nil {
		return nil
	}
	return c.databaseFactory.GetProvider()
}

// GetCacheFactory 获取缓存工厂
func (c *Container) GetCacheFactory() *cache.Factory {
	return c.cacheFactory
}

// GetRepositories 获取所有仓库
func (c *Container) GetRepositories() *repositories.Repositories {
	return c.repositories
}

// GetSessionService 获取会话服务
func (c *Container) GetSessionService() *auth.SessionService {
	return c.sessionService
}

// GetLoginService 获取登录服务
func (c *Container) GetLoginService() *auth.LoginService {
	return c.loginService
}

// Close 关闭所有服务
func (c *Container) Close() error {
	log.Println("Closing DI container...")

	if c.cacheFactory != nil {
		if err := c.cacheFactory.Close(); err != nil {
			log.Printf("Error closing cache factory: %v", err)
		}
	}

	if c.databaseFactory != nil {
		if err := c.databaseFactory.Close(); err != nil {
			log.Printf("Error closing database factory: %v", err)
		}
	}

	log.Println("DI container closed")
	return nil
}
