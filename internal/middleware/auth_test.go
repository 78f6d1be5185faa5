package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bioshelf/bioshelf/internal/testutil"
	"github.com/bioshelf/bioshelf/internal/utils"
)

func TestTokenAuth_ValidToken(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	user := testutil.CreateTestUser(t, repos, "alice")

	token, err := utils.GenerateAPIToken()
	if err != nil {
		t.Fatalf("GenerateAPIToken() error = %v", err)
	}
	if err := repos.Users.CreateToken(context.Background(), user.ID, utils.HashAPIToken(token)); err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}

	var gotUserID int64
	handler := TokenAuth(repos.Users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			t.Error("user missing from context")
			return
		}
		gotUserID = u.ID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if gotUserID != user.ID {
		t.Errorf("resolved user ID = %d, want %d", gotUserID, user.ID)
	}
}

func TestTokenAuth_TokenScheme(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	user := testutil.CreateTestUser(t, repos, "bob")

	token, _ := utils.GenerateAPIToken()
	if err := repos.Users.CreateToken(context.Background(), user.ID, utils.HashAPIToken(token)); err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}

	handler := TokenAuth(repos.Users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Authorization", "Token "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestTokenAuth_Rejections(t *testing.T) {
	repos := testutil.SetupTestRepos(t)

	unknownToken, _ := utils.GenerateAPIToken()

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"malformed token", "Bearer not-a-real-token"},
		{"unknown token", "Bearer " + unknownToken},
	}

	handler := TokenAuth(repos.Users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
		})
	}
}
