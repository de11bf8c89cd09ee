package valkey

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oauthkit/oauthkit/storage"
)

// newTestStore connects to a local Valkey instance, skipping the test when
// none is reachable. Each test gets a unique key prefix for isolation.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("VALKEY_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	s, err := New(Config{
		Address:   addr,
		KeyPrefix: fmt.Sprintf("oauthkittest:%s:", t.Name()),
	})
	if err != nil {
		t.Skipf("skipping: could not connect to Valkey at %s: %v", addr, err)
	}

	t.Cleanup(func() {
		cleanupTestKeys(t, s)
		s.Close()
	})
	cleanupTestKeys(t, s)
	return s
}

func cleanupTestKeys(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	var cursor uint64
	for {
		entry, err := s.client.Do(ctx,
			s.client.B().Scan().Cursor(cursor).Match(s.prefix+"*").Count(100).Build(),
		).AsScanEntry()
		if err != nil {
			t.Logf("cleanup scan failed: %v", err)
			return
		}
		for _, key := range entry.Elements {
			_ = s.client.Do(ctx, s.client.B().Del().Key(key).Build())
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return
		}
	}
}

func TestClientRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveClient(ctx, storage.Client{
		ID:           "machine",
		Name:         "Machine Client",
		Confidential: true,
	}, "machine-secret"))

	client, err := s.GetClient(ctx, "machine")
	require.NoError(t, err)
	assert.Equal(t, "Machine Client", client.Name)
	assert.True(t, client.Confidential)

	_, err = s.GetClient(ctx, "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestValidateClientSecret(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveClient(ctx, storage.Client{ID: "machine", Confidential: true}, "machine-secret"))
	require.NoError(t, s.SaveClient(ctx, storage.Client{ID: "web-app", RedirectURI: "https://client.example/cb"}, ""))

	client, err := s.ValidateClient(ctx, "machine", "machine-secret", "client_credentials")
	require.NoError(t, err)
	assert.Equal(t, "machine", client.ID)

	_, err = s.ValidateClient(ctx, "machine", "wrong", "client_credentials")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Public clients authenticate without a secret.
	client, err = s.ValidateClient(ctx, "web-app", "", "authorization_code")
	require.NoError(t, err)
	assert.False(t, client.Confidential)

	_, err = s.ValidateClient(ctx, "ghost", "anything", "client_credentials")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveClientRequiresSecretForConfidential(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveClient(context.Background(), storage.Client{ID: "machine", Confidential: true}, "")
	assert.Error(t, err)
}

func TestScopeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveScope(ctx, "read"))

	scope, err := s.GetScope(ctx, "read")
	require.NoError(t, err)
	assert.Equal(t, "read", scope.ID)

	_, err = s.GetScope(ctx, "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAuthorizationCodePersistence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	code := &storage.AuthorizationCode{
		ID:        "code-1",
		ClientID:  "web-app",
		UserID:    "user-1",
		Scopes:    []storage.Scope{{ID: "read"}},
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, s.PersistAuthorizationCode(ctx, code))

	err := s.PersistAuthorizationCode(ctx, code)
	assert.ErrorIs(t, err, storage.ErrDuplicateIdentifier)

	revoked, err := s.IsAuthorizationCodeRevoked(ctx, "code-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.RevokeAuthorizationCode(ctx, "code-1"))

	revoked, err = s.IsAuthorizationCodeRevoked(ctx, "code-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Unknown identifiers report revoked.
	revoked, err = s.IsAuthorizationCodeRevoked(ctx, "never-issued")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestExpiredRecordRejected(t *testing.T) {
	s := newTestStore(t)

	err := s.PersistAccessToken(context.Background(), &storage.AccessToken{
		ID:        "token-1",
		ClientID:  "web-app",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	assert.Error(t, err)
}

func TestAccessTokenPersistence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token, err := s.NewAccessToken(ctx, &storage.Client{ID: "web-app"}, []storage.Scope{{ID: "read"}}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "web-app", token.ClientID)

	token.ID = "token-1"
	token.ExpiresAt = time.Now().Add(time.Hour)
	require.NoError(t, s.PersistAccessToken(ctx, token))
	assert.ErrorIs(t, s.PersistAccessToken(ctx, token), storage.ErrDuplicateIdentifier)

	require.NoError(t, s.RevokeAccessToken(ctx, "token-1"))

	revoked, err := s.IsAccessTokenRevoked(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRefreshTokenPersistence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token, err := s.NewRefreshToken(ctx)
	require.NoError(t, err)
	require.NotNil(t, token)

	token.ID = "refresh-1"
	token.AccessTokenID = "token-1"
	token.ExpiresAt = time.Now().Add(24 * time.Hour)
	require.NoError(t, s.PersistRefreshToken(ctx, token))
	assert.ErrorIs(t, s.PersistRefreshToken(ctx, token), storage.ErrDuplicateIdentifier)

	require.NoError(t, s.RevokeRefreshToken(ctx, "refresh-1"))

	revoked, err := s.IsRefreshTokenRevoked(ctx, "refresh-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestUserCredentials(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	client := &storage.Client{ID: "machine"}

	require.NoError(t, s.SaveUser(ctx, "user-1", "alice", "alice-password"))

	user, err := s.GetUserByCredentials(ctx, "alice", "alice-password", "password", client)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)

	_, err = s.GetUserByCredentials(ctx, "alice", "wrong", "password", client)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetUserByCredentials(ctx, "nobody", "alice-password", "password", client)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
