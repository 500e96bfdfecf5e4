// Package trust provides persistence backends for the trust ledger.
// Load is tolerant by contract: a missing or corrupt store yields an
// empty record set so the service can still start.
package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mikey/llm-chat-guard/internal/core"
	"go.uber.org/zap"
)

// FileStore persists trust records as a single JSON file, rewritten
// whole on every save. Write volume is low (one write per clean post
// from a still-untrusted user), so the full rewrite is acceptable.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore creates a JSON-file trust store at the given path
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

// Load reads all trust records. Missing and corrupt files both yield an
// empty map: the ledger fails open on load, never on a decision.
func (s *FileStore) Load(ctx context.Context) (map[string]*core.TrustRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*core.TrustRecord), nil
		}
		s.logger.Error("Failed to read trust file", zap.String("path", s.path), zap.Error(err))
		return make(map[string]*core.TrustRecord), nil
	}

	var records map[string]*core.TrustRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Error("Trust file is corrupt, starting empty",
			zap.String("path", s.path),
			zap.Error(err))
		return make(map[string]*core.TrustRecord), nil
	}
	if records == nil {
		records = make(map[string]*core.TrustRecord)
	}
	return records, nil
}

// Save rewrites the full record set, via a temp file and rename so a
// crash mid-write never leaves a truncated store.
func (s *FileStore) Save(ctx context.Context, records map[string]*core.TrustRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode trust records: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write trust file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace trust file: %w", err)
	}
	return nil
}

// Close is a no-op for the file store
func (s *FileStore) Close() error {
	return nil
}
