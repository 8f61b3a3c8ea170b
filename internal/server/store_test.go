package server

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/anshumat/budgetbox/internal/budget"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := OpenStore(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLatestBudgetEmpty(t *testing.T) {
	s := openTestStore(t)

	row, err := s.LatestBudget(context.Background(), "nobody@example.org")
	if err != nil {
		t.Fatalf("LatestBudget failed: %v", err)
	}
	if row != nil {
		t.Errorf("expected nil row for unknown identity, got %+v", row)
	}
}

func TestAppendIsAppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := budget.Amounts{Income: 100}
	second := budget.Amounts{Income: 200, Food: 50}

	ts1, err := s.AppendBudget(ctx, "me@example.org", first)
	if err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	ts2, err := s.AppendBudget(ctx, "me@example.org", second)
	if err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	if ts2 <= ts1 {
		t.Errorf("write timestamps must strictly increase: %d then %d", ts1, ts2)
	}

	count, err := s.BudgetCount(ctx, "me@example.org")
	if err != nil {
		t.Fatalf("BudgetCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows (append-only), got %d", count)
	}

	row, err := s.LatestBudget(ctx, "me@example.org")
	if err != nil {
		t.Fatalf("LatestBudget failed: %v", err)
	}
	if row.Amounts != second {
		t.Errorf("latest row = %+v, want the second write", row.Amounts)
	}
	if row.UpdatedAt != ts2 {
		t.Errorf("latest timestamp = %d, want %d", row.UpdatedAt, ts2)
	}
}

func TestAppendPartitionsByIdentity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.AppendBudget(ctx, "a@example.org", budget.Amounts{Income: 1}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := s.AppendBudget(ctx, "b@example.org", budget.Amounts{Income: 2}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	rowA, err := s.LatestBudget(ctx, "a@example.org")
	if err != nil {
		t.Fatalf("LatestBudget failed: %v", err)
	}
	if rowA.Amounts.Income != 1 {
		t.Errorf("identity a sees income %v, want 1", rowA.Amounts.Income)
	}

	rowB, err := s.LatestBudget(ctx, "b@example.org")
	if err != nil {
		t.Fatalf("LatestBudget failed: %v", err)
	}
	if rowB.Amounts.Income != 2 {
		t.Errorf("identity b sees income %v, want 2", rowB.Amounts.Income)
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Register(ctx, "me@example.org", "secret"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := s.Register(ctx, "me@example.org", "other"); !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}

	if err := s.Authenticate(ctx, "me@example.org", "secret"); err != nil {
		t.Errorf("Authenticate with correct secret failed: %v", err)
	}
	if err := s.Authenticate(ctx, "me@example.org", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for wrong secret, got %v", err)
	}
	if err := s.Authenticate(ctx, "nobody@example.org", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}
