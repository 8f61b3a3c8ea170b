package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/anshumat/budgetbox/internal/budget"
)

// syncRequest is the /budget/sync payload.
type syncRequest struct {
	Email  string         `json:"email"`
	Budget budget.Amounts `json:"budget"`
}

// accountRequest is the /register and /login payload.
type accountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLatest serves GET /budget/latest?email=<identity>.
//
// The response always carries success=true with budget and timestamp
// both null when the identity has never pushed, so clients can tell an
// empty account apart from a failure.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "email is required"})
		return
	}

	row, err := s.store.LatestBudget(r.Context(), email)
	if err != nil {
		s.logger.Printf("Latest query failed for %s: %v", email, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Fetch failed"})
		return
	}

	resp := map[string]any{
		"success":   true,
		"budget":    nil,
		"timestamp": nil,
	}
	if row != nil {
		resp["budget"] = row.Amounts
		resp["timestamp"] = row.UpdatedAt
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleSync serves POST /budget/sync: a full-record upsert appending a
// new row and returning the server-assigned write timestamp.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "email is required"})
		return
	}

	ts, err := s.store.AppendBudget(r.Context(), req.Email, req.Budget)
	if err != nil {
		s.logger.Printf("Sync write failed for %s: %v", req.Email, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Sync failed"})
		return
	}

	s.logger.Printf("Accepted budget for %s at %d", req.Email, ts)

	revision, err := s.store.BudgetCount(r.Context(), req.Email)
	if err != nil {
		revision = 0
	}
	s.broadcastBudgetUpdate(req.Email, ts, revision)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"timestamp": ts,
	})
}

// handleRegister serves POST /register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}

	err := s.store.Register(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrUserExists) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "Email already exists",
		})
		return
	}
	if err != nil {
		s.logger.Printf("Register failed for %s: %v", req.Email, err)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "Error creating account",
		})
		return
	}

	s.logger.Printf("Registered account %s", req.Email)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Account created",
	})
}

// handleLogin serves POST /login. The secret is compared as an opaque
// string; the token is not checked anywhere, it only marks a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}

	err := s.store.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "Invalid credentials",
		})
		return
	}
	if err != nil {
		s.logger.Printf("Login failed for %s: %v", req.Email, err)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "Login error",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"email":   req.Email,
		"token":   "dummy-token",
	})
}

// broadcastBudgetUpdate publishes an accepted push to the event feed.
func (s *Server) broadcastBudgetUpdate(email string, ts int64, revision int) {
	data := BudgetUpdateData{
		Email:     email,
		UpdatedAt: ts,
		Revision:  revision,
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("Failed to marshal budget update: %v", err)
		return
	}

	s.Broadcast(Message{
		Type:      MessageTypeBudgetUpdate,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
