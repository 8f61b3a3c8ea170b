package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anshumat/budgetbox/internal/budget"
)

func TestFetchLatestWithRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/budget/latest" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("email"); got != "me@example.org" {
			t.Errorf("unexpected email %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"budget": budget.Amounts{
				Income: 50000, Bills: 10000, Food: 5000,
				Transport: 2000, Subs: 1000, Misc: 2000,
			},
			"timestamp": int64(1700000000000),
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	remote, err := client.FetchLatest(context.Background(), "me@example.org")
	if err != nil {
		t.Fatalf("FetchLatest failed: %v", err)
	}
	if remote == nil {
		t.Fatal("expected a record")
	}
	if remote.Timestamp != 1700000000000 {
		t.Errorf("timestamp = %d, want 1700000000000", remote.Timestamp)
	}
	if remote.Amounts.Income != 50000 || remote.Amounts.Misc != 2000 {
		t.Errorf("unexpected amounts: %+v", remote.Amounts)
	}
}

func TestFetchLatestNoRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"budget":    nil,
			"timestamp": nil,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	remote, err := client.FetchLatest(context.Background(), "new@example.org")
	if err != nil {
		t.Fatalf("no-record must not be an error: %v", err)
	}
	if remote != nil {
		t.Errorf("expected nil remote for unknown identity, got %+v", remote)
	}
}

func TestFetchLatestServerErrorIsDistinguishable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Fetch failed"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	remote, err := client.FetchLatest(context.Background(), "me@example.org")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if remote != nil {
		t.Errorf("expected nil remote on failure, got %+v", remote)
	}
}

func TestFetchLatestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL)
	if _, err := client.FetchLatest(context.Background(), "me@example.org"); err == nil {
		t.Fatal("expected error when server is unreachable")
	}
}

func TestPushUpdate(t *testing.T) {
	var received struct {
		Email  string         `json:"email"`
		Budget budget.Amounts `json:"budget"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/budget/sync" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode push body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"timestamp": int64(1700000001000),
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	amounts := budget.Amounts{Income: 42000, Bills: 8000}
	ts, err := client.PushUpdate(context.Background(), "me@example.org", amounts)
	if err != nil {
		t.Fatalf("PushUpdate failed: %v", err)
	}
	if ts != 1700000001000 {
		t.Errorf("timestamp = %d, want 1700000001000", ts)
	}
	if received.Email != "me@example.org" {
		t.Errorf("pushed email = %q", received.Email)
	}
	if received.Budget != amounts {
		t.Errorf("pushed amounts = %+v, want %+v", received.Budget, amounts)
	}
}

func TestRegisterAlreadyExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "Email already exists",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ok, msg, err := client.Register(context.Background(), "me@example.org", "secret")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if ok {
		t.Error("expected already-exists to be reported as not-success")
	}
	if msg != "Email already exists" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestLoginInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "Invalid credentials",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if _, err := client.Login(context.Background(), "me@example.org", "wrong"); err == nil {
		t.Fatal("expected error for invalid credentials")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}

	srv.Close()
	if err := client.Health(context.Background()); err == nil {
		t.Fatal("expected error after server shutdown")
	}
}
