package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-chat-guard/internal/adapters/telegram"
	"github.com/mikey/llm-chat-guard/internal/audit"
	"github.com/mikey/llm-chat-guard/internal/config"
	"github.com/mikey/llm-chat-guard/internal/core"
	"github.com/mikey/llm-chat-guard/internal/factory"
	"github.com/mikey/llm-chat-guard/internal/logging"
	"github.com/mikey/llm-chat-guard/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register audit logger (separate file sink)
	if err := container.Provide(func(cfg *config.Config) (*audit.Logger, error) {
		auditZap, err := logging.InitAuditLogger(cfg.GetString("audit.path"))
		if err != nil {
			return nil, err
		}
		return audit.NewLogger(auditZap), nil
	}); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTrustFactory); err != nil {
		return nil, err
	}

	// Register classifier
	if err := container.Provide(func(f *factory.LLMFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register trust store and ledger
	if err := container.Provide(func(f *factory.TrustFactory) (core.TrustStore, error) {
		return f.CreateTrustStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(store core.TrustStore, f *factory.TrustFactory, logger *zap.Logger) *core.TrustLedger {
		return core.NewTrustLedger(context.Background(), store, f.GetTrustThreshold(), logger)
	}); err != nil {
		return nil, err
	}

	// Register context window
	if err := container.Provide(func(cfg *config.Config) *core.ContextWindow {
		return core.NewContextWindow(cfg.GetInt("context.capacity"))
	}); err != nil {
		return nil, err
	}

	// Register telegram transport
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*telegram.Transport, error) {
		tgCfg := cfg.GetTelegram()
		return telegram.NewTransport(tgCfg.Token, tgCfg.PollTimeout, logger)
	}); err != nil {
		return nil, err
	}

	// Register action sequencer over the transport's moderation port
	if err := container.Provide(func(cfg *config.Config, transport *telegram.Transport, logger *zap.Logger) *core.ActionSequencer {
		return core.NewActionSequencer(transport, cfg.GetBool("spam.ban_on_image_only"), logger)
	}); err != nil {
		return nil, err
	}

	// Register moderation service
	if err := container.Provide(func(
		cfg *config.Config,
		ledger *core.TrustLedger,
		window *core.ContextWindow,
		classifier core.Classifier,
		transport *telegram.Transport,
		sequencer *core.ActionSequencer,
		auditLog *audit.Logger,
		logger *zap.Logger,
	) (*core.ModerationService, error) {
		textTimeout, err := cfg.GetDuration("llm.text_timeout")
		if err != nil {
			return nil, err
		}
		imageTimeout, err := cfg.GetDuration("llm.image_timeout")
		if err != nil {
			return nil, err
		}
		svcCfg := core.ModerationConfig{
			AllowedChats: cfg.GetTelegram().AllowedChats,
			Policy: core.DecisionPolicy{
				SpamConfidence:   cfg.GetFloat64("spam.spam_confidence"),
				SignalConfidence: cfg.GetFloat64("spam.signal_confidence"),
				MinSignals:       cfg.GetInt("spam.min_signals"),
			},
			TextTimeout:   textTimeout,
			ImageTimeout:  imageTimeout,
			MaxImageBytes: cfg.GetInt64("image.max_bytes"),
		}
		return core.NewModerationService(svcCfg, ledger, window, classifier, transport, sequencer, auditLog, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
