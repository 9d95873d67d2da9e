package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestGoogleOAuthProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/auth/google/callback",
	})

	loginURL := provider.GetLoginURL("test-state-value")

	if !strings.HasPrefix(loginURL, defaultGoogleAuthURL+"?") {
		t.Fatalf("URL should start with auth endpoint, got %q", loginURL)
	}

	parsed, err := url.Parse(loginURL)
	if err != nil {
		t.Fatalf("failed to parse login URL: %v", err)
	}
	q := parsed.Query()

	tests := []struct {
		param string
		want  string
	}{
		{"client_id", "test-client-id"},
		{"redirect_uri", "http://localhost:8080/auth/google/callback"},
		{"state", "test-state-value"},
		{"response_type", "code"},
		{"scope", "openid email profile"},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			if got := q.Get(tt.param); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.param, got, tt.want)
			}
		})
	}
}

// TestGoogleOAuthProvider_ExchangeCode_Success はトークン交換とユーザー情報取得で
// subが外部ID、pictureがアバターURLとして返ることを検証する。
func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if r.PostForm.Get("code") != "test-auth-code" {
			t.Errorf("code = %q", r.PostForm.Get("code"))
		}
		if r.PostForm.Get("grant_type") != "authorization_code" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-access-token" {
			t.Errorf("unexpected Authorization header: %q", got)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sub":     "google-sub-12345",
			"email":   "user@gmail.com",
			"name":    "Google User",
			"picture": "https://lh3.googleusercontent.com/a/photo.jpg",
		})
	}))
	defer userInfoServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		HTTPClient:   tokenServer.Client(),
		TokenURL:     tokenServer.URL,
		UserInfoURL:  userInfoServer.URL,
	})

	info, err := provider.ExchangeCode(context.Background(), "test-auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if info.ExternalID != "google-sub-12345" {
		t.Errorf("ExternalID = %q, want %q", info.ExternalID, "google-sub-12345")
	}
	if info.Email != "user@gmail.com" {
		t.Errorf("Email = %q", info.Email)
	}
	if info.Name != "Google User" {
		t.Errorf("Name = %q", info.Name)
	}
	if info.AvatarURL != "https://lh3.googleusercontent.com/a/photo.jpg" {
		t.Errorf("AvatarURL = %q", info.AvatarURL)
	}
}

func TestGoogleOAuthProvider_ExchangeCode_TokenError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":             "invalid_grant",
			"error_description": "Code was already redeemed.",
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID: "test-client-id",
		TokenURL: tokenServer.URL,
	})

	_, err := provider.ExchangeCode(context.Background(), "invalid-code")
	if err == nil {
		t.Fatal("expected error from ExchangeCode with invalid code")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error should mention status, got %v", err)
	}
}

func TestGoogleOAuthProvider_ExchangeCode_UserInfoError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "test-access-token"})
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer userInfoServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		TokenURL:    tokenServer.URL,
		UserInfoURL: userInfoServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "valid-code"); err == nil {
		t.Fatal("expected error from ExchangeCode when user info fetch fails")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_MissingSub(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok"})
	}))
	defer tokenServer.Close()
	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"email": "nosub@example.com"})
	}))
	defer userInfoServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{TokenURL: tokenServer.URL, UserInfoURL: userInfoServer.URL})

	if _, err := provider.ExchangeCode(context.Background(), "code"); err == nil {
		t.Fatal("expected error when sub is missing")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_EmptyCode(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{TokenURL: "http://127.0.0.1:0"})

	if _, err := provider.ExchangeCode(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty code")
	}
}
