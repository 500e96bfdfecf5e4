package core

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

// fakeTrustStore is an in-memory TrustStore for ledger tests
type fakeTrustStore struct {
	records map[string]*TrustRecord
	loadErr error
	saveErr error
	saves   int
}

func (s *fakeTrustStore) Load(ctx context.Context) (map[string]*TrustRecord, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.records, nil
}

func (s *fakeTrustStore) Save(ctx context.Context, records map[string]*TrustRecord) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records = records
	return nil
}

func (s *fakeTrustStore) Close() error { return nil }

func newTestLedger(t *testing.T, store *fakeTrustStore) *TrustLedger {
	t.Helper()
	return NewTrustLedger(context.Background(), store, 2, zap.NewNop())
}

func TestTrustLedger_UnknownUserIsEligible(t *testing.T) {
	ledger := newTestLedger(t, &fakeTrustStore{})
	if !ledger.IsEligible("stranger") {
		t.Error("unknown user should be eligible for evaluation")
	}
	if got := ledger.SafeCount("stranger"); got != 0 {
		t.Errorf("SafeCount = %d, want 0", got)
	}
}

func TestTrustLedger_ThresholdGatesEligibility(t *testing.T) {
	store := &fakeTrustStore{}
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	if err := ledger.RecordSafe(ctx, "u1", "alice"); err != nil {
		t.Fatalf("RecordSafe: %v", err)
	}
	if !ledger.IsEligible("u1") {
		t.Error("user with one clean post should still be eligible")
	}

	if err := ledger.RecordSafe(ctx, "u1", "alice"); err != nil {
		t.Fatalf("RecordSafe: %v", err)
	}
	if ledger.IsEligible("u1") {
		t.Error("user at threshold should no longer be eligible")
	}
}

func TestTrustLedger_RecordSafeIsACounterNotASet(t *testing.T) {
	// Replaying the same clean post increments again: dedup of transport
	// redeliveries is an upstream concern, not the ledger's.
	ledger := newTestLedger(t, &fakeTrustStore{})
	ctx := context.Background()

	ledger.RecordSafe(ctx, "u2", "bob")
	ledger.RecordSafe(ctx, "u2", "bob")
	ledger.RecordSafe(ctx, "u2", "bob")

	if got := ledger.SafeCount("u2"); got != 3 {
		t.Errorf("SafeCount = %d, want 3", got)
	}
}

func TestTrustLedger_PersistsOnEveryUpdate(t *testing.T) {
	store := &fakeTrustStore{}
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	ledger.RecordSafe(ctx, "u3", "carol")
	ledger.RecordSafe(ctx, "u4", "dave")

	if store.saves != 2 {
		t.Errorf("saves = %d, want 2", store.saves)
	}
	if rec := store.records["u3"]; rec == nil || rec.SafeCount != 1 || rec.DisplayName != "carol" {
		t.Errorf("persisted record = %+v, want count 1 and display name carol", rec)
	}
}

func TestTrustLedger_FailsOpenOnLoadError(t *testing.T) {
	store := &fakeTrustStore{loadErr: errors.New("disk on fire")}
	ledger := newTestLedger(t, store)

	if !ledger.IsEligible("anyone") {
		t.Error("ledger should start empty after a load failure")
	}
}

func TestTrustLedger_SaveErrorDoesNotLoseIncrement(t *testing.T) {
	store := &fakeTrustStore{saveErr: errors.New("readonly fs")}
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	if err := ledger.RecordSafe(ctx, "u5", "erin"); err == nil {
		t.Error("expected persistence error to surface")
	}
	if got := ledger.SafeCount("u5"); got != 1 {
		t.Errorf("SafeCount = %d, want 1 despite failed save", got)
	}
}

func TestTrustLedger_LoadsExistingRecords(t *testing.T) {
	store := &fakeTrustStore{records: map[string]*TrustRecord{
		"veteran": {UserID: "veteran", SafeCount: 5, DisplayName: "vera"},
	}}
	ledger := newTestLedger(t, store)

	if ledger.IsEligible("veteran") {
		t.Error("user above threshold should not be eligible")
	}
	if got := ledger.SafeCount("veteran"); got != 5 {
		t.Errorf("SafeCount = %d, want 5", got)
	}
}
