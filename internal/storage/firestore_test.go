package storage

import (
	"context"
	"testing"
	"time"

	"github.com/dgellow/gsession/internal/crypto"
	"github.com/dgellow/gsession/internal/idp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreStorageConfig(t *testing.T) {
	t.Run("missing GCP project ID", func(t *testing.T) {
		ctx := context.Background()
		encryptor, _ := crypto.NewEncryptor([]byte("test-encryption-key-32-bytes-ok!"))

		_, err := NewFirestoreStorage(ctx, "", "(default)", "test_collection", encryptor)
		assert.Error(t, err, "Expected error when GCP project ID is missing for Firestore storage")
		assert.Contains(t, err.Error(), "projectID is required")
	})

	t.Run("nil encryptor", func(t *testing.T) {
		ctx := context.Background()

		_, err := NewFirestoreStorage(ctx, "test-project", "(default)", "test_collection", nil)
		assert.Error(t, err, "Expected error when encryptor is nil")
		assert.Contains(t, err.Error(), "encryptor is required")
	})

	t.Run("missing collection", func(t *testing.T) {
		ctx := context.Background()
		encryptor, _ := crypto.NewEncryptor([]byte("test-encryption-key-32-bytes-ok!"))

		_, err := NewFirestoreStorage(ctx, "test-project", "(default)", "", encryptor)
		assert.Error(t, err, "Expected error when collection is empty")
		assert.Contains(t, err.Error(), "collection is required")
	})
}

func TestSessionDocConversion(t *testing.T) {
	encryptor, err := crypto.NewEncryptor([]byte("test-encryption-key-32-bytes-ok!"))
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	session := &Session{
		State:        "state-1",
		AuthURL:      "https://accounts.google.com/o/oauth2/auth?state=state-1",
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
		IDToken:      "id.token.value",
		IDInfo:       &idp.Claims{GivenName: "Ada", Picture: "https://pic"},
		CreatedAt:    now,
		CompletedAt:  now,
		ExpiresAt:    now.Add(15 * time.Minute),
	}

	doc, err := toSessionDoc(session, encryptor)
	require.NoError(t, err)
	assert.NotEqual(t, "ya29.access", doc.AccessToken, "tokens are encrypted at rest")
	assert.NotEqual(t, "1//refresh", doc.RefreshToken)
	assert.NotEqual(t, "id.token.value", doc.IDToken)
	assert.Contains(t, doc.IDInfo, `"given_name":"Ada"`)

	back, err := doc.toSession(encryptor)
	require.NoError(t, err)
	assert.Equal(t, session, back)

	t.Run("pending session has no tokens", func(t *testing.T) {
		pending := &Session{State: "p", AuthURL: "u", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
		doc, err := toSessionDoc(pending, encryptor)
		require.NoError(t, err)
		assert.Empty(t, doc.AccessToken)
		assert.Empty(t, doc.IDInfo)

		back, err := doc.toSession(encryptor)
		require.NoError(t, err)
		assert.Nil(t, back.IDInfo)
		assert.False(t, back.Completed())
	})
}
