package budget

import "testing"

func TestParseField(t *testing.T) {
	for _, f := range Fields() {
		parsed, err := ParseField(f.String())
		if err != nil {
			t.Fatalf("ParseField(%q) failed: %v", f.String(), err)
		}
		if parsed != f {
			t.Errorf("ParseField(%q) = %v, want %v", f.String(), parsed, f)
		}
	}

	if _, err := ParseField("rent"); err == nil {
		t.Error("expected error for unknown field")
	}
	if _, err := ParseField(""); err == nil {
		t.Error("expected error for empty field")
	}
}

func TestAmountsGetSet(t *testing.T) {
	var a Amounts

	for i, f := range Fields() {
		a.Set(f, float64(i+1)*100)
	}

	if a.Income != 100 || a.Bills != 200 || a.Food != 300 ||
		a.Transport != 400 || a.Subs != 500 || a.Misc != 600 {
		t.Errorf("unexpected amounts after Set: %+v", a)
	}

	for i, f := range Fields() {
		if got := a.Get(f); got != float64(i+1)*100 {
			t.Errorf("Get(%v) = %v, want %v", f, got, float64(i+1)*100)
		}
	}
}

func TestAmountsAllowNegative(t *testing.T) {
	var a Amounts
	a.Set(FieldMisc, -42.5)
	if a.Misc != -42.5 {
		t.Errorf("negative amount not stored as given: %v", a.Misc)
	}
}

func TestSyncStatusValid(t *testing.T) {
	valid := []SyncStatus{StatusLocalOnly, StatusSyncPending, StatusSynced}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if SyncStatus("dirty").Valid() {
		t.Error("expected unknown status to be invalid")
	}
	if SyncStatus("").Valid() {
		t.Error("expected empty status to be invalid")
	}
}

func TestNewSnapshot(t *testing.T) {
	s := NewSnapshot()

	if s.Status != StatusLocalOnly {
		t.Errorf("expected local-only status, got %q", s.Status)
	}
	if s.UpdatedAt == 0 {
		t.Error("expected UpdatedAt to be stamped")
	}
	if s.SyncedAt != 0 {
		t.Errorf("expected zero SyncedAt before first sync, got %d", s.SyncedAt)
	}
	if s.Amounts != (Amounts{}) {
		t.Errorf("expected all-zero amounts, got %+v", s.Amounts)
	}
}
