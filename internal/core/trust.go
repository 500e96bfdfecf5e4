package core

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// TrustLedger tracks per-user counts of prior clean posts. Once a user
// reaches the threshold their posts are no longer submitted to the
// classifier, converting a per-message oracle cost into a one-time cost
// per new member.
type TrustLedger struct {
	store     TrustStore
	records   map[string]*TrustRecord
	threshold int
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewTrustLedger creates a ledger backed by the given store. An
// unreadable or corrupt store degrades to an empty ledger rather than
// failing startup.
func NewTrustLedger(ctx context.Context, store TrustStore, threshold int, logger *zap.Logger) *TrustLedger {
	records, err := store.Load(ctx)
	if err != nil {
		logger.Error("Failed to load trust store, starting empty", zap.Error(err))
		records = make(map[string]*TrustRecord)
	}
	if records == nil {
		records = make(map[string]*TrustRecord)
	}

	logger.Info("Trust ledger initialized",
		zap.Int("users", len(records)),
		zap.Int("threshold", threshold))

	return &TrustLedger{
		store:     store,
		records:   records,
		threshold: threshold,
		logger:    logger,
	}
}

// IsEligible reports whether a user's posts still need classification.
// Unknown users are eligible (implicit zero-valued record).
func (l *TrustLedger) IsEligible(userID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[userID]
	if !ok {
		return true
	}
	return rec.SafeCount < l.threshold
}

// SafeCount returns the recorded clean-post count for a user.
func (l *TrustLedger) SafeCount(userID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if rec, ok := l.records[userID]; ok {
		return rec.SafeCount
	}
	return 0
}

// RecordSafe increments a user's clean-post count, caches the display
// name, and synchronously persists the full ledger. The count is a plain
// counter: recording the same post twice increments twice. Dedup of
// transport redeliveries happens upstream.
func (l *TrustLedger) RecordSafe(ctx context.Context, userID, displayName string) error {
	l.mu.Lock()
	rec, ok := l.records[userID]
	if !ok {
		rec = &TrustRecord{UserID: userID}
		l.records[userID] = rec
	}
	rec.SafeCount++
	rec.DisplayName = displayName

	snapshot := make(map[string]*TrustRecord, len(l.records))
	for id, r := range l.records {
		cp := *r
		snapshot[id] = &cp
	}
	count := rec.SafeCount
	l.mu.Unlock()

	l.logger.Debug("Recorded clean post",
		zap.String("user_id", userID),
		zap.Int("safe_count", count))

	if err := l.store.Save(ctx, snapshot); err != nil {
		l.logger.Error("Failed to persist trust ledger", zap.Error(err))
		return err
	}
	return nil
}
