package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/llm-chat-guard/internal/adapters/trust"
	"github.com/mikey/llm-chat-guard/internal/config"
	"github.com/mikey/llm-chat-guard/internal/core"
	"go.uber.org/zap"
)

// TrustFactory creates trust stores based on configuration
type TrustFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewTrustFactory creates a new trust store factory
func NewTrustFactory(cfg *config.Config, logger *zap.Logger) *TrustFactory {
	return &TrustFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTrustStore creates a trust store based on the configuration
func (f *TrustFactory) CreateTrustStore() (core.TrustStore, error) {
	storeType := f.cfg.GetString("trust.store")

	switch storeType {
	case "file":
		return trust.NewFileStore(f.cfg.GetString("trust.file_path"), f.logger), nil
	case "sqlite":
		sqlitePath := f.cfg.GetString("trust.sqlite_path")
		if dir := filepath.Dir(sqlitePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
			}
		}
		return trust.NewSQLiteStore(sqlitePath, f.logger)
	case "mysql":
		return trust.NewMySQLStore(f.cfg.GetString("trust.mysql_dsn"), f.logger)
	default:
		return nil, fmt.Errorf("unsupported trust store type: %s", storeType)
	}
}

// GetTrustThreshold returns the configured safe-post threshold
func (f *TrustFactory) GetTrustThreshold() int {
	return f.cfg.GetInt("trust.threshold")
}
