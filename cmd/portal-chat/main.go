package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/config"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "portal-chat",
	Short: "Retrieval-augmented chat backend for the developer portal",
	Long: `portal-chat embeds catalog entities, keeps the embeddings up to date and
answers questions with the most relevant entities as context.

Configuration is read from portal-chat.yaml (or --config) and PORTAL_CHAT_*
environment variables. OPENAI_API_KEY is used when no key is configured.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}

		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, mcpCmd, refreshCmd, retrieveCmd, ingestCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
