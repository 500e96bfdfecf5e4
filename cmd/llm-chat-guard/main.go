package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/llm-chat-guard/internal/adapters/telegram"
	"github.com/mikey/llm-chat-guard/internal/core"
	"github.com/mikey/llm-chat-guard/internal/di"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	transport *telegram.Transport,
	service *core.ModerationService,
	classifier core.Classifier,
	store core.TrustStore,
) error {
	defer logger.Sync()

	transport.SetHandler(service)

	if err := transport.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start telegram transport", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	if err := transport.Stop(); err != nil {
		logger.Error("Failed to stop telegram transport", zap.Error(err))
	}

	// Close any resources that need closing
	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}

	if err := store.Close(); err != nil {
		logger.Error("Failed to close trust store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
