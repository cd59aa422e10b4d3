package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument(t *testing.T) {
	t.Run("valid backend document", func(t *testing.T) {
		result := ValidateDocument([]byte(backendDoc))
		assert.True(t, result.IsValid(), "%+v", result.Errors)
		assert.Empty(t, result.Warnings)
	})

	t.Run("invalid json", func(t *testing.T) {
		result := ValidateDocument([]byte(`{`))
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Message, "invalid JSON")
	})

	t.Run("bash style syntax warns", func(t *testing.T) {
		doc := `{"version": "v1", "frontend": {"addr": ":8501", "backendURL": "${BACKEND_URL}", "googleClientId": "id", "csrfKey": {"$env": "CSRF"}, "cookies": {"domain": "example.test"}}}`
		result := ValidateDocument([]byte(doc))
		assert.True(t, result.IsValid())
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "frontend.backendURL", result.Warnings[0].Path)
	})

	t.Run("plain secret is an error and is not echoed", func(t *testing.T) {
		doc := `{"version": "v1", "frontend": {"addr": ":8501", "backendURL": "https://b", "googleClientId": "id", "csrfKey": "hunter2hunter2hunter2"}}`
		result := ValidateDocument([]byte(doc))
		require.False(t, result.IsValid())
		for _, e := range result.Errors {
			assert.NotContains(t, e.Message, "hunter2")
		}
	})

	t.Run("frontend requires cookie domain", func(t *testing.T) {
		doc := `{"version": "v1", "frontend": {"addr": ":8501", "backendURL": "https://b", "googleClientId": "id", "csrfKey": {"$env": "CSRF"}}}`
		result := ValidateDocument([]byte(doc))
		require.False(t, result.IsValid())
		assert.Equal(t, "frontend.cookies.domain", result.Errors[0].Path)
	})

	t.Run("missing fields", func(t *testing.T) {
		result := ValidateDocument([]byte(`{"version": "v2", "backend": {}}`))
		paths := map[string]bool{}
		for _, e := range result.Errors {
			paths[e.Path] = true
		}
		for _, p := range []string{"version", "backend.addr", "backend.baseURL", "backend.frontendURL", "backend.google", "backend.cookies.domain"} {
			assert.True(t, paths[p], "expected error at %s", p)
		}
	})
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret-password")
	assert.Equal(t, "***", s.String())
	assert.Equal(t, "value: ***", fmt.Sprintf("value: %s", s))

	data, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"***"}`, string(data))

	assert.Equal(t, "", Secret("").String())
}
