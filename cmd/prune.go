package cmd

import (
	"fmt"
	"log"

	"github.com/anoixa/cerberus/config"
	"github.com/anoixa/cerberus/internal/di"
	"github.com/spf13/cobra"
)

// pruneCmd represents the prune command
// 一次性清理过期与已撤销的会话，适合交给 cron 调度。
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired and revoked sessions from storage",
	Run: func(cmd *cobra.Command, args []string) {
		runPrune()
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune() {
	config.InitConfig()
	cfg := config.Get()

	container := di.NewContainer(cfg)
	if err := container.Init(); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer container.Close()

	removed, err := container.GetRepositories().Sessions.Prune()
	if err != nil {
		log.Fatalf("Failed to prune sessions: %v", err)
	}

	fmt.Printf("Pruned %d stale sessions\n", removed)
}
