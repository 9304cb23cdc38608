package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"realestate-token-api/services"

	"github.com/gofiber/fiber/v2"
)

type mockAuthenticator struct {
	loginFn   func(email, password string) (*services.TokenPair, error)
	refreshFn func(token string) (string, error)
}

func (m *mockAuthenticator) Login(_ context.Context, email, password string) (*services.TokenPair, error) {
	if m.loginFn != nil {
		return m.loginFn(email, password)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockAuthenticator) Refresh(_ context.Context, token string) (string, error) {
	if m.refreshFn != nil {
		return m.refreshFn(token)
	}
	return "", fmt.Errorf("not configured")
}

func TestTokenEndpoints(t *testing.T) {
	auth := &mockAuthenticator{
		loginFn: func(email, password string) (*services.TokenPair, error) {
			if email == "user@example.com" && password == "right" {
				return &services.TokenPair{Access: "access-token", Refresh: "refresh-token"}, nil
			}
			return nil, fmt.Errorf("%w: invalid credentials", services.ErrUnauthorized)
		},
		refreshFn: func(token string) (string, error) {
			if token == "refresh-token" {
				return "new-access", nil
			}
			return "", fmt.Errorf("%w: invalid token", services.ErrUnauthorized)
		},
	}

	tests := []struct {
		name           string
		url            string
		body           any
		expectedStatus int
		expectedKey    string
		expectedValue  string
	}{
		{"login success", "/api/token", map[string]any{"email": "user@example.com", "password": "right"}, http.StatusOK, "refresh", "refresh-token"},
		{"login wrong password", "/api/token", map[string]any{"email": "user@example.com", "password": "wrong"}, http.StatusUnauthorized, "", ""},
		{"refresh success", "/api/token/refresh", map[string]any{"refresh": "refresh-token"}, http.StatusOK, "access", "new-access"},
		{"refresh with bad token", "/api/token/refresh", map[string]any{"refresh": "access-token"}, http.StatusUnauthorized, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(anonymous, func(api fiber.Router) { SetupAuthRoutes(api, auth) })
			resp := doRequest(t, app, "POST", tt.url, tt.body)
			if resp.StatusCode != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, resp.StatusCode)
			}
			if tt.expectedKey != "" {
				var body map[string]string
				decodeBody(t, resp, &body)
				if body[tt.expectedKey] != tt.expectedValue {
					t.Errorf("%s = %q, want %q", tt.expectedKey, body[tt.expectedKey], tt.expectedValue)
				}
			}
		})
	}
}
