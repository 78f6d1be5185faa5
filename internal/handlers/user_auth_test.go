package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/testutil"
	"github.com/bioshelf/bioshelf/internal/utils"
)

func registerUser(t *testing.T, repos *repository.Repositories, username, password string) models.AuthResponse {
	t.Helper()

	body, _ := json.Marshal(models.RegisterRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	RegisterHandler(repos)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode auth response: %v", err)
	}
	return resp
}

func TestRegisterHandler(t *testing.T) {
	repos := testutil.SetupTestRepos(t)

	resp := registerUser(t, repos, "alice", "hunter2hunter2")

	if resp.Username != "alice" {
		t.Errorf("username = %q, want alice", resp.Username)
	}
	if !strings.HasPrefix(resp.Token, utils.APITokenPrefix) {
		t.Errorf("token %q missing prefix", resp.Token)
	}
	if !utils.ValidateAPITokenFormat(resp.Token) {
		t.Errorf("issued token %q failed format validation", resp.Token)
	}
}

func TestRegisterHandler_Validation(t *testing.T) {
	repos := testutil.SetupTestRepos(t)

	tests := []struct {
		name       string
		req        models.RegisterRequest
		wantStatus int
	}{
		{"empty username", models.RegisterRequest{Username: "", Password: "hunter2hunter2"}, http.StatusBadRequest},
		{"short password", models.RegisterRequest{Username: "bob", Password: "short"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.req)
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			RegisterHandler(repos)(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterHandler_DuplicateUsername(t *testing.T) {
	repos := testutil.SetupTestRepos(t)

	registerUser(t, repos, "alice", "hunter2hunter2")

	body, _ := json.Marshal(models.RegisterRequest{Username: "alice", Password: "hunter2hunter2"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	RegisterHandler(repos)(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register returned %d, want 409", rec.Code)
	}
}

func TestLoginHandler(t *testing.T) {
	repos := testutil.SetupTestRepos(t)

	registerUser(t, repos, "alice", "hunter2hunter2")

	tests := []struct {
		name       string
		req        models.LoginRequest
		wantStatus int
	}{
		{"valid credentials", models.LoginRequest{Username: "alice", Password: "hunter2hunter2"}, http.StatusOK},
		{"wrong password", models.LoginRequest{Username: "alice", Password: "wrongwrongwrong"}, http.StatusUnauthorized},
		{"unknown username", models.LoginRequest{Username: "nobody", Password: "hunter2hunter2"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.req)
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			LoginHandler(repos)(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				var resp models.AuthResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to decode auth response: %v", err)
				}
				if resp.Token == "" {
					t.Error("login issued empty token")
				}
			}
		})
	}
}

func TestLoginHandler_IndistinguishableFailures(t *testing.T) {
	repos := testutil.SetupTestRepos(t)

	registerUser(t, repos, "alice", "hunter2hunter2")

	responses := make([]models.ErrorResponse, 0, 2)
	for _, login := range []models.LoginRequest{
		{Username: "alice", Password: "wrongwrongwrong"},
		{Username: "nobody", Password: "hunter2hunter2"},
	} {
		body, _ := json.Marshal(login)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		LoginHandler(repos)(rec, req)

		var errResp models.ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
			t.Fatalf("failed to decode error: %v", err)
		}
		responses = append(responses, errResp)
	}

	if responses[0] != responses[1] {
		t.Errorf("wrong-password and unknown-user responses differ: %+v vs %+v", responses[0], responses[1])
	}
}
