// Package huggy talks to the Huggy chat platform: outbound messages,
// flow triggers, workflow moves and chat closing.
package huggy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// exitWorkflowStep is the sentinel step id the API accepts to remove a
// chat from its current workflow.
const exitWorkflowStep = ""

// Config holds the connection settings for the Huggy API.
type Config struct {
	BaseURL  string
	APIToken string
}

// OutboundMessage is the payload of POST /chats/{id}/messages.
type OutboundMessage struct {
	Text     string   `json:"text"`
	Options  []string `json:"options,omitempty"`
	File     string   `json:"file,omitempty"`
	Internal bool     `json:"isInternal"`
}

// Client is the low-level HTTP client. Business-level combinations live
// in Service.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a Client. If logger is nil, slog.Default() is used.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// PostMessage delivers msg to chatID.
func (c *Client) PostMessage(ctx context.Context, chatID string, msg OutboundMessage) error {
	url := fmt.Sprintf("%s/chats/%s/messages", c.cfg.BaseURL, chatID)
	if err := c.do(ctx, http.MethodPost, url, msg); err != nil {
		return fmt.Errorf("post message to chat %s: %w", chatID, err)
	}

	c.logger.InfoContext(ctx, "message_sent",
		slog.String("chat_id", chatID),
		slog.Bool("internal", msg.Internal),
		slog.Bool("has_options", len(msg.Options) > 0),
	)
	return nil
}

// TriggerFlow starts flowID on the chat (POST /chats/{id}/flow).
func (c *Client) TriggerFlow(ctx context.Context, chatID string, flowID int) error {
	url := fmt.Sprintf("%s/chats/%s/flow", c.cfg.BaseURL, chatID)
	body := map[string]any{"flowId": flowID}

	if err := c.do(ctx, http.MethodPost, url, body); err != nil {
		return fmt.Errorf("trigger flow %d on chat %s: %w", flowID, chatID, err)
	}

	c.logger.InfoContext(ctx, "flow_triggered",
		slog.String("chat_id", chatID),
		slog.Int("flow_id", flowID),
	)
	return nil
}

// UpdateWorkflowStep moves the chat to stepID (PUT /chats/{id}/workflow).
// An empty stepID removes the chat from its workflow.
func (c *Client) UpdateWorkflowStep(ctx context.Context, chatID, stepID string) error {
	url := fmt.Sprintf("%s/chats/%s/workflow", c.cfg.BaseURL, chatID)
	body := map[string]any{"stepId": stepID}

	if err := c.do(ctx, http.MethodPut, url, body); err != nil {
		return fmt.Errorf("update workflow step on chat %s: %w", chatID, err)
	}

	c.logger.InfoContext(ctx, "workflow_updated",
		slog.String("chat_id", chatID),
		slog.String("step_id", stepID),
	)
	return nil
}

// CloseChat closes the chat with a tabulation (PUT /chats/{id}/close).
func (c *Client) CloseChat(ctx context.Context, chatID, tabulationID string) error {
	url := fmt.Sprintf("%s/chats/%s/close", c.cfg.BaseURL, chatID)
	body := map[string]any{
		"sendFeedback": false,
		"tabulation":   tabulationID,
	}

	if err := c.do(ctx, http.MethodPut, url, body); err != nil {
		return fmt.Errorf("close chat %s: %w", chatID, err)
	}

	c.logger.InfoContext(ctx, "chat_closed",
		slog.String("chat_id", chatID),
		slog.String("tabulation", tabulationID),
	)
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("huggy returned %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
