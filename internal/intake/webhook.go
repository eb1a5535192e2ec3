package intake

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/emprestedigital/creditbot/internal/taskqueue"
)

// maxPayloadBytes caps a webhook body; the platform's payloads are a few
// kilobytes.
const maxPayloadBytes = 1 << 20

// WebhookHandler accepts chat platform webhooks and enqueues them for
// asynchronous processing. The HTTP response only acknowledges receipt;
// all business handling happens in the workers.
type WebhookHandler struct {
	queue  taskqueue.Queue
	logger *slog.Logger
	now    func() time.Time
}

// NewWebhookHandler creates a WebhookHandler. If logger is nil,
// slog.Default() is used.
func NewWebhookHandler(queue taskqueue.Queue, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{queue: queue, logger: logger, now: time.Now}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if !json.Valid(body) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	task := taskqueue.Task{
		ID:         uuid.NewString(),
		Type:       taskqueue.TaskTypeProcessEvent,
		RawEvent:   body,
		EnqueuedAt: h.now(),
	}
	if err := h.queue.Enqueue(r.Context(), task); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook_enqueue_failed",
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(r.Context(), "webhook_enqueued",
		slog.String("task_id", task.ID),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "received",
		"task_id": task.ID,
	})
}
