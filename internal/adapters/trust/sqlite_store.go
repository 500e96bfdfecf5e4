package trust

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/llm-chat-guard/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the TrustStore interface
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a new SQLite trust store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trust_records (
			user_id TEXT PRIMARY KEY,
			safe_count INTEGER NOT NULL,
			display_name TEXT
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger,
	}, nil
}

// Load reads all trust records. Query failures degrade to an empty set.
func (s *SQLiteStore) Load(ctx context.Context) (map[string]*core.TrustRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, safe_count, display_name FROM trust_records
	`)
	if err != nil {
		s.logger.Error("Failed to load trust records, starting empty", zap.Error(err))
		return make(map[string]*core.TrustRecord), nil
	}
	defer rows.Close()

	records := make(map[string]*core.TrustRecord)
	for rows.Next() {
		var rec core.TrustRecord
		var displayName sql.NullString
		if err := rows.Scan(&rec.UserID, &rec.SafeCount, &displayName); err != nil {
			s.logger.Error("Failed to scan trust record, skipping", zap.Error(err))
			continue
		}
		rec.DisplayName = displayName.String
		records[rec.UserID] = &rec
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("Trust record iteration failed", zap.Error(err))
	}
	return records, nil
}

// Save rewrites the full record set in one transaction
func (s *SQLiteStore) Save(ctx context.Context, records map[string]*core.TrustRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trust_records`); err != nil {
		return fmt.Errorf("failed to clear trust records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trust_records (user_id, safe_count, display_name)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.UserID, rec.SafeCount, rec.DisplayName); err != nil {
			return fmt.Errorf("failed to insert trust record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trust records: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
