package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/oauthkit/oauthkit/storage"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := s.AddClient(storage.Client{
		ID:          "web-app",
		RedirectURI: "https://client.example/cb",
	}, ""); err != nil {
		t.Fatalf("AddClient() error = %v", err)
	}
	if err := s.AddClient(storage.Client{
		ID:           "machine",
		Confidential: true,
	}, "machine-secret"); err != nil {
		t.Fatalf("AddClient() error = %v", err)
	}
	s.AddScope("read")
	if err := s.AddUser("user-1", "alice", "alice-password"); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	return s
}

func TestAddClientRequiresSecretForConfidential(t *testing.T) {
	s := New(nil)
	err := s.AddClient(storage.Client{ID: "machine", Confidential: true}, "")
	if err == nil {
		t.Error("AddClient() accepted a confidential client without a secret")
	}
}

func TestGetClient(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	client, err := s.GetClient(ctx, "web-app")
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}
	if client.RedirectURI != "https://client.example/cb" {
		t.Errorf("RedirectURI = %q", client.RedirectURI)
	}

	if _, err := s.GetClient(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetClient(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestValidateClient(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		clientID string
		secret   string
		wantErr  bool
	}{
		{name: "confidential with correct secret", clientID: "machine", secret: "machine-secret"},
		{name: "confidential with wrong secret", clientID: "machine", secret: "wrong", wantErr: true},
		{name: "confidential with empty secret", clientID: "machine", secret: "", wantErr: true},
		{name: "public without secret", clientID: "web-app", secret: ""},
		{name: "unknown client", clientID: "ghost", secret: "anything", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := s.ValidateClient(ctx, tt.clientID, tt.secret, "client_credentials")
			if tt.wantErr {
				if err == nil {
					t.Error("ValidateClient() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateClient() error = %v", err)
			}
			if client.ID != tt.clientID {
				t.Errorf("client ID = %q, want %q", client.ID, tt.clientID)
			}
		})
	}
}

func TestGetScope(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	scope, err := s.GetScope(ctx, "read")
	if err != nil {
		t.Fatalf("GetScope() error = %v", err)
	}
	if scope.ID != "read" {
		t.Errorf("scope ID = %q", scope.ID)
	}

	if _, err := s.GetScope(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetScope(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestAuthorizationCodeLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	code := &storage.AuthorizationCode{
		ID:        "code-1",
		ClientID:  "web-app",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	if err := s.PersistAuthorizationCode(ctx, code); err != nil {
		t.Fatalf("PersistAuthorizationCode() error = %v", err)
	}

	// Same identifier again reports the collision.
	err := s.PersistAuthorizationCode(ctx, code)
	if !errors.Is(err, storage.ErrDuplicateIdentifier) {
		t.Errorf("duplicate persist error = %v, want ErrDuplicateIdentifier", err)
	}

	revoked, err := s.IsAuthorizationCodeRevoked(ctx, "code-1")
	if err != nil {
		t.Fatalf("IsAuthorizationCodeRevoked() error = %v", err)
	}
	if revoked {
		t.Error("fresh code reports revoked")
	}

	if err := s.RevokeAuthorizationCode(ctx, "code-1"); err != nil {
		t.Fatalf("RevokeAuthorizationCode() error = %v", err)
	}
	revoked, _ = s.IsAuthorizationCodeRevoked(ctx, "code-1")
	if !revoked {
		t.Error("revoked code reports valid")
	}

	// Revocation is idempotent, including for unknown identifiers.
	if err := s.RevokeAuthorizationCode(ctx, "code-1"); err != nil {
		t.Errorf("second RevokeAuthorizationCode() error = %v", err)
	}
	if err := s.RevokeAuthorizationCode(ctx, "never-issued"); err != nil {
		t.Errorf("RevokeAuthorizationCode(unknown) error = %v", err)
	}
}

func TestUnknownIdentifiersReportRevoked(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if revoked, err := s.IsAuthorizationCodeRevoked(ctx, "never-issued"); err != nil || !revoked {
		t.Errorf("IsAuthorizationCodeRevoked(unknown) = (%v, %v), want (true, nil)", revoked, err)
	}
	if revoked, err := s.IsAccessTokenRevoked(ctx, "never-issued"); err != nil || !revoked {
		t.Errorf("IsAccessTokenRevoked(unknown) = (%v, %v), want (true, nil)", revoked, err)
	}
	if revoked, err := s.IsRefreshTokenRevoked(ctx, "never-issued"); err != nil || !revoked {
		t.Errorf("IsRefreshTokenRevoked(unknown) = (%v, %v), want (true, nil)", revoked, err)
	}
}

func TestAccessTokenLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	client := &storage.Client{ID: "web-app"}
	scopes := []storage.Scope{{ID: "read"}}

	token, err := s.NewAccessToken(ctx, client, scopes, "user-1")
	if err != nil {
		t.Fatalf("NewAccessToken() error = %v", err)
	}
	if token.ClientID != "web-app" || token.UserID != "user-1" {
		t.Errorf("token = %+v", token)
	}

	token.ID = "token-1"
	token.ExpiresAt = time.Now().Add(time.Hour)
	if err := s.PersistAccessToken(ctx, token); err != nil {
		t.Fatalf("PersistAccessToken() error = %v", err)
	}
	if err := s.PersistAccessToken(ctx, token); !errors.Is(err, storage.ErrDuplicateIdentifier) {
		t.Errorf("duplicate persist error = %v, want ErrDuplicateIdentifier", err)
	}

	if err := s.RevokeAccessToken(ctx, "token-1"); err != nil {
		t.Fatalf("RevokeAccessToken() error = %v", err)
	}
	if revoked, _ := s.IsAccessTokenRevoked(ctx, "token-1"); !revoked {
		t.Error("revoked token reports valid")
	}
}

func TestRefreshTokenLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	token, err := s.NewRefreshToken(ctx)
	if err != nil {
		t.Fatalf("NewRefreshToken() error = %v", err)
	}
	if token == nil {
		t.Fatal("NewRefreshToken() = nil with issuance enabled")
	}

	token.ID = "refresh-1"
	token.AccessTokenID = "token-1"
	token.ExpiresAt = time.Now().Add(24 * time.Hour)
	if err := s.PersistRefreshToken(ctx, token); err != nil {
		t.Fatalf("PersistRefreshToken() error = %v", err)
	}
	if err := s.PersistRefreshToken(ctx, token); !errors.Is(err, storage.ErrDuplicateIdentifier) {
		t.Errorf("duplicate persist error = %v, want ErrDuplicateIdentifier", err)
	}

	if err := s.RevokeRefreshToken(ctx, "refresh-1"); err != nil {
		t.Fatalf("RevokeRefreshToken() error = %v", err)
	}
	if revoked, _ := s.IsRefreshTokenRevoked(ctx, "refresh-1"); !revoked {
		t.Error("revoked token reports valid")
	}
}

func TestSetIssueRefreshTokens(t *testing.T) {
	s := testStore(t)
	s.SetIssueRefreshTokens(false)

	token, err := s.NewRefreshToken(context.Background())
	if err != nil {
		t.Fatalf("NewRefreshToken() error = %v", err)
	}
	if token != nil {
		t.Error("NewRefreshToken() issued a token with issuance disabled")
	}
}

func TestGetUserByCredentials(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	client := &storage.Client{ID: "machine"}

	user, err := s.GetUserByCredentials(ctx, "alice", "alice-password", "password", client)
	if err != nil {
		t.Fatalf("GetUserByCredentials() error = %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user ID = %q, want user-1", user.ID)
	}

	if _, err := s.GetUserByCredentials(ctx, "alice", "wrong", "password", client); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("wrong password error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetUserByCredentials(ctx, "nobody", "alice-password", "password", client); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown user error = %v, want ErrNotFound", err)
	}
}
