package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/api"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/chat"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/indexer"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		client, err := newChatClient()
		if err != nil {
			return err
		}
		svc := chat.NewService(client, a.searcher, a.indexer, chat.ServiceConfig{
			AllowedModels: cfg.Chat.AllowedModels,
			CharLimit:     cfg.Chat.CharLimit,
			Logger:        logger,
		})

		mode, _ := indexer.ParseMode(cfg.Indexer.StartupMode)
		if a.indexer.RefreshAsync(mode) {
			logger.Info("startup refresh started", zap.Stringer("mode", mode))
		}

		gin.SetMode(gin.ReleaseMode)
		server := api.NewServer(svc, a.indexer, a.store, api.Config{
			Port:            cfg.Server.Port,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			Logger:          logger,
		})
		return server.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides config)")
}

// newChatClient builds the completion client. Without an API key the server
// still starts and completions fail with ErrNoAPIKey.
func newChatClient() (chat.Client, error) {
	client, err := chat.NewOpenAIClient(chat.ClientConfig{
		APIKey:  cfg.Chat.APIKey,
		BaseURL: cfg.Chat.BaseURL,
		Timeout: cfg.Chat.Timeout,
	})
	if errors.Is(err, chat.ErrNoAPIKey) {
		logger.Warn("chat api key not set, completions are disabled")
		return unavailableClient{err: err}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat client: %w", err)
	}
	return client, nil
}

type unavailableClient struct {
	err error
}

func (c unavailableClient) Complete(ctx context.Context, req chat.CompletionRequest) (*chat.CompletionResponse, error) {
	return nil, c.err
}
