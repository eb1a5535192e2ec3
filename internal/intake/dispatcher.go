// Package intake receives chat platform webhooks, filters out events the
// bot must not react to, and routes the rest to the engine.
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/emprestedigital/creditbot/internal/observability"
	"github.com/emprestedigital/creditbot/internal/session"
)

// Event types of interest in the webhook payload. Anything else is
// ignored.
const (
	eventReceivedMessage = "receivedAllMessage"
	eventClosedChat      = "closedChat"
)

// flexString decodes a JSON value that arrives either as a string or as a
// number; the platform is not consistent about ids.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type webhookPayload struct {
	Messages map[string][]json.RawMessage `json:"messages"`
}

// messageEvent tolerates the platform's two spellings of the internal
// flag.
type messageEvent struct {
	Body          string     `json:"body"`
	Text          string     `json:"text"`
	InternalCamel bool       `json:"isInternal"`
	InternalSnake bool       `json:"is_internal"`
	SenderType    string     `json:"senderType"`
	Chat          chatHeader `json:"chat"`
}

func (e messageEvent) text() string {
	if e.Body != "" {
		return e.Body
	}
	return e.Text
}

func (e messageEvent) internal() bool {
	return e.InternalCamel || e.InternalSnake
}

type chatHeader struct {
	ID         flexString `json:"id"`
	Department flexString `json:"department"`
	Situation  string     `json:"situation"`
}

type closedChatEvent struct {
	ID flexString `json:"id"`
}

// Filter keeps only the traffic one deployment owns: a single channel
// type, department and chat situation.
type Filter struct {
	SenderType string
	Department string
	Situation  string
}

// Engine advances one conversation per inbound message.
type Engine interface {
	Process(ctx context.Context, chatID, text string) error
}

// ChatCleanup is the platform action taken when a chat closes outside the
// bot's control.
type ChatCleanup interface {
	RemoveFromWorkflow(ctx context.Context, chatID string) error
}

// Dispatcher routes raw webhook payloads: customer messages go to the
// engine, chat closures clear the session, everything else is dropped.
type Dispatcher struct {
	engine   Engine
	sessions session.Store
	cleanup  ChatCleanup
	filter   Filter
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. If logger is nil, slog.Default() is
// used.
func NewDispatcher(engine Engine, sessions session.Store, cleanup ChatCleanup, filter Filter, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		engine:   engine,
		sessions: sessions,
		cleanup:  cleanup,
		filter:   filter,
		logger:   logger,
	}
}

// Dispatch handles one raw webhook payload. A payload that fails to parse
// is a permanent error for that event; it is logged and dropped, never
// retried.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) error {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		observability.EventsProcessed.WithLabelValues("malformed").Inc()
		d.logger.ErrorContext(ctx, "webhook_payload_malformed",
			slog.String("error", err.Error()),
		)
		return nil
	}

	if len(payload.Messages) == 0 {
		observability.EventsProcessed.WithLabelValues("ignored").Inc()
		return nil
	}

	for eventType, events := range payload.Messages {
		if len(events) == 0 {
			continue
		}

		switch eventType {
		case eventClosedChat:
			if err := d.handleClosedChat(ctx, events[0]); err != nil {
				return err
			}
		case eventReceivedMessage:
			if err := d.handleMessage(ctx, events[0]); err != nil {
				return err
			}
		default:
			d.logger.DebugContext(ctx, "webhook_event_unmapped",
				slog.String("event_type", eventType),
			)
		}
	}
	return nil
}

func (d *Dispatcher) handleClosedChat(ctx context.Context, raw json.RawMessage) error {
	var event closedChatEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("parse closedChat event: %w", err)
	}
	chatID := string(event.ID)
	if chatID == "" {
		d.logger.WarnContext(ctx, "closed_chat_without_id")
		return nil
	}

	d.logger.InfoContext(ctx, "chat_closed_externally",
		slog.String("chat_id", chatID),
	)

	if err := d.sessions.Clear(ctx, chatID); err != nil {
		return err
	}
	if err := d.cleanup.RemoveFromWorkflow(ctx, chatID); err != nil {
		d.logger.WarnContext(ctx, "workflow_removal_failed",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (d *Dispatcher) handleMessage(ctx context.Context, raw json.RawMessage) error {
	var event messageEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("parse message event: %w", err)
	}

	if reason, ok := d.shouldIgnore(event); ok {
		observability.EventsProcessed.WithLabelValues("ignored").Inc()
		d.logger.DebugContext(ctx, "message_ignored",
			slog.String("chat_id", string(event.Chat.ID)),
			slog.String("reason", reason),
		)
		return nil
	}

	chatID := string(event.Chat.ID)
	if chatID == "" {
		d.logger.WarnContext(ctx, "message_without_chat_id")
		return nil
	}

	return d.engine.Process(ctx, chatID, strings.TrimSpace(event.text()))
}

func (d *Dispatcher) shouldIgnore(event messageEvent) (string, bool) {
	if event.internal() {
		return "internal", true
	}
	if event.SenderType != d.filter.SenderType {
		return "sender_type " + strconv.Quote(event.SenderType), true
	}
	if string(event.Chat.Department) != d.filter.Department {
		return "department " + strconv.Quote(string(event.Chat.Department)), true
	}
	if event.Chat.Situation != d.filter.Situation {
		return "situation " + strconv.Quote(event.Chat.Situation), true
	}
	return "", false
}
