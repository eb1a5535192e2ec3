package intake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emprestedigital/creditbot/internal/taskqueue"
)

func TestWebhook_EnqueuesRawPayload(t *testing.T) {
	queue := taskqueue.NewInMemoryQueue()
	handler := NewWebhookHandler(queue, nil)

	body := `{"messages":{"receivedAllMessage":[{"body":"oi"}]}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "received", resp["status"])
	assert.NotEmpty(t, resp["task_id"])

	tasks := queue.Snapshot()
	require.Len(t, tasks, 1)
	assert.Equal(t, taskqueue.TaskTypeProcessEvent, tasks[0].Type)
	assert.JSONEq(t, body, string(tasks[0].RawEvent))
	assert.Equal(t, resp["task_id"], tasks[0].ID)
}

func TestWebhook_RejectsInvalidJSON(t *testing.T) {
	queue := taskqueue.NewInMemoryQueue()
	handler := NewWebhookHandler(queue, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{oops"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, queue.Len())
}

func TestWebhook_RejectsWrongMethod(t *testing.T) {
	queue := taskqueue.NewInMemoryQueue()
	handler := NewWebhookHandler(queue, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 0, queue.Len())
}
