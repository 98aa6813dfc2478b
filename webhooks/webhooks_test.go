package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrop(t *testing.T) {
	var gotBody map[string]string
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("crmhub-secret-256")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	status, err := Drop(context.Background(), server.URL, "s3cret",
		map[string]string{"template": "welcome"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "welcome", gotBody["template"])
	assert.NotEmpty(t, gotSignature)
}

func TestDropWithoutSecretOmitsSignature(t *testing.T) {
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("crmhub-secret-256")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	status, err := Drop(context.Background(), server.URL, "", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, gotSignature)
}

func TestDropReturnsCollaboratorStatus(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusUnprocessableEntity} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		status, err := Drop(context.Background(), server.URL, "", map[string]string{})
		require.NoError(t, err)
		assert.Equal(t, code, status)
		server.Close()
	}
}

func TestDropRejectsBadInput(t *testing.T) {
	_, err := Drop(context.Background(), "not-a-url", "", map[string]string{})
	assert.Error(t, err)

	_, err = Drop(context.Background(), "", "", map[string]string{})
	assert.Error(t, err)

	_, err = Drop(context.Background(), "http://localhost:1", "", nil)
	assert.Error(t, err)
}

func TestIsUrl(t *testing.T) {
	assert.True(t, IsUrl("https://hooks.internal/email"))
	assert.False(t, IsUrl("hooks.internal/email"))
	assert.False(t, IsUrl(""))
}
