package huggy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostMessage(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIToken: "secret"}, nil)
	err := client.PostMessage(context.Background(), "42", OutboundMessage{
		Text:     "hello",
		Internal: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "/chats/42/messages", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "hello", gotBody["text"])
	assert.Equal(t, true, gotBody["isInternal"])
}

func TestTriggerFlow(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chats/42/flow", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIToken: "x"}, nil)
	require.NoError(t, client.TriggerFlow(context.Background(), "42", 77))
	assert.Equal(t, float64(77), gotBody["flowId"])
}

func TestCloseChat_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chat not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIToken: "x"}, nil)
	err := client.CloseChat(context.Background(), "42", "tab-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestUpdateWorkflowStep_ExitSentinel(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIToken: "x"}, nil)
	require.NoError(t, client.UpdateWorkflowStep(context.Background(), "42", exitWorkflowStep))
	assert.Equal(t, "", gotBody["stepId"])
}
