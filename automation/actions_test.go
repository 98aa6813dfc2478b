package automation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	C "crmhub/config"
	"crmhub/model/model"
)

func collaboratorRegistry(emailURL string) *Registry {
	return NewDefaultRegistry(C.ActionCollaborators{
		EmailServiceURL: emailURL,
		WebhookSecret:   "s3cret",
	})
}

func emailHandler(t *testing.T, registry *Registry) Handler {
	t.Helper()
	handler, found := registry.Get(model.ActionSendEmail)
	require.True(t, found)
	return handler
}

func TestSendEmailHandlerPostsToCollaborator(t *testing.T) {
	setupTestStore(t)

	var got struct {
		ActionType string `json:"action_type"`
		Config     struct {
			Template string `json:"template"`
		} `json:"config"`
		Event *model.Event `json:"event"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	handler := emailHandler(t, collaboratorRegistry(server.URL))
	event := qualifiedEvent("evt-1", "42")

	err := handler.Execute(context.Background(), jsonb(`{"template":"welcome"}`), event)
	require.NoError(t, err)

	assert.Equal(t, model.ActionSendEmail, got.ActionType)
	assert.Equal(t, "welcome", got.Config.Template)
	require.NotNil(t, got.Event)
	assert.Equal(t, "42", got.Event.EntityID)
}

func TestCollaboratorStatusClassification(t *testing.T) {
	setupTestStore(t)

	cases := []struct {
		name      string
		status    int
		permanent bool
		succeeds  bool
	}{
		{"ServerErrorIsTransient", http.StatusInternalServerError, false, false},
		{"ThrottleIsTransient", http.StatusTooManyRequests, false, false},
		{"RequestTimeoutIsTransient", http.StatusRequestTimeout, false, false},
		{"RejectionIsPermanent", http.StatusUnprocessableEntity, true, false},
		{"NotFoundIsPermanent", http.StatusNotFound, true, false},
		{"AcceptedSucceeds", http.StatusAccepted, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			handler := emailHandler(t, collaboratorRegistry(server.URL))
			err := handler.Execute(context.Background(),
				jsonb(`{"template":"welcome"}`), qualifiedEvent("evt-1", "42"))

			if tc.succeeds {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.permanent, IsPermanentActionError(err))
		})
	}
}

func TestCollaboratorTransportFailureIsTransient(t *testing.T) {
	setupTestStore(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	handler := emailHandler(t, collaboratorRegistry(server.URL))
	err := handler.Execute(context.Background(),
		jsonb(`{"template":"welcome"}`), qualifiedEvent("evt-1", "42"))

	require.Error(t, err)
	assert.False(t, IsPermanentActionError(err))
}

func TestCollaboratorBadConfigIsPermanent(t *testing.T) {
	setupTestStore(t)

	handler := emailHandler(t, collaboratorRegistry("http://unused.invalid"))
	err := handler.Execute(context.Background(),
		jsonb(`{"template":""}`), qualifiedEvent("evt-1", "42"))

	require.Error(t, err)
	assert.True(t, IsPermanentActionError(err))
}

func TestCollaboratorDryRunInDevelopment(t *testing.T) {
	setupTestStore(t)

	// No endpoint configured: development logs and succeeds.
	handler := emailHandler(t, collaboratorRegistry(""))
	err := handler.Execute(context.Background(),
		jsonb(`{"template":"welcome"}`), qualifiedEvent("evt-1", "42"))
	assert.NoError(t, err)
}

func TestDispatchTimesOutSlowCollaborator(t *testing.T) {
	setupTestStore(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Outlive the attempt timeout; the client cancels first.
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	dispatcher := &Dispatcher{
		Registry:       collaboratorRegistry(server.URL),
		MaxAttempts:    2,
		AttemptTimeout: 20 * time.Millisecond,
		BackoffBase:    time.Millisecond,
	}

	record, err := dispatcher.Dispatch(context.Background(),
		emailRule("r-1"), qualifiedEvent("evt-1", "42"))
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionStatusFailed, record.Status)
	assert.Equal(t, 2, record.Attempts)
}
