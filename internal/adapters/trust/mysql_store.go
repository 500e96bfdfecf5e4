package trust

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/llm-chat-guard/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the TrustStore interface
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore creates a new MySQL trust store
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trust_records (
			user_id VARCHAR(64) PRIMARY KEY,
			safe_count INT NOT NULL,
			display_name VARCHAR(255)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLStore{
		db:     db,
		logger: logger,
	}, nil
}

// Load reads all trust records. Query failures degrade to an empty set.
func (s *MySQLStore) Load(ctx context.Context) (map[string]*core.TrustRecord, error) {
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

// Save upserts every record; rows for users absent from the map are kept
// (trust records are never deleted)
func (s *MySQLStore) Save(ctx context.Context, records map[string]*core.TrustRecord) error {
	for _, rec := range records {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO trust_records (user_id, safe_count, display_name)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE
				safe_count = VALUES(safe_count),
				display_name = VALUES(display_name)
		`, rec.UserID, rec.SafeCount, rec.DisplayName)
		if err != nil {
			return fmt.Errorf("failed to upsert trust record: %w", err)
		}
	}
	return nil
}

// Close closes the database
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
