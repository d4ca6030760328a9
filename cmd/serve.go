package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anoixa/cerberus/api/core"
	"github.com/anoixa/cerberus/config"
	"github.com/anoixa/cerberus/internal/di"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start API server",
	Run: func(cmd *cobra.Command, args []string) {
		RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func RunServer() {
	config.InitConfig()
	cfg := config.Get()

	if err := os.MkdirAll("./data", os.ModePerm); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	container := di.NewContainer(cfg)
	if err := container.Init(); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	if err := container.GetDatabaseFactory().AutoMigrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 首次启动时创建默认管理员账户
	container.GetRepositories().Accounts.CreateDefaultAdminUser()

	deps := &core.ServerDependencies{
		DatabaseFactory: container.GetDatabaseFactory(),
		CacheFactory:    container.GetCacheFactory(),
		Repositories:    container.GetRepositories(),
		SessionService:  container.GetSessionService(),
		LoginService:    container.GetLoginService(),
	}

	// 启动gin
	server, cleanup := core.StartServer(deps)
	go func() {
		log.Printf("Server started on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// 周期性清理过期与已撤销的会话
	pruneStop := startSessionPruner(container, cfg)

	// 处理退出signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if cleanup != nil {
		cleanup()
	}
	close(pruneStop)

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := container.Close(); err != nil {
		log.Printf("Failed to close container: %v", err)
	}

	log.Println("Server exited")
}

// startSessionPruner 在后台按配置的间隔清理会话存储
func startSessionPruner(container *di.Container, cfg *config.Config) chan struct{} {
	stop := make(chan struct{})

	interval := cfg.PruneInterval()
	if interval <= 0 {
		return stop
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed, err := container.GetRepositories().Sessions.Prune()
				if err != nil {
					log.Printf("[Prune] failed to prune sessions: %v", err)
					continue
				}
				if removed > 0 {
					log.Printf("[Prune] removed %d stale sessions", removed)
				}
			case <-stop:
				return
			}
		}
	}()

	return stop
}
