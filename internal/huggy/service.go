package huggy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/emprestedigital/creditbot/internal/messages"
)

// ErrNoTabulation is returned when a close is attempted without a
// tabulation; every closed chat must carry one for reporting.
var ErrNoTabulation = errors.New("huggy: refusing to close chat without tabulation")

// ChatAPI is the slice of Client the Service needs.
type ChatAPI interface {
	PostMessage(ctx context.Context, chatID string, msg OutboundMessage) error
	TriggerFlow(ctx context.Context, chatID string, flowID int) error
	UpdateWorkflowStep(ctx context.Context, chatID, stepID string) error
	CloseChat(ctx context.Context, chatID, tabulationID string) error
}

// Routing holds the platform identifiers one deployment uses: which flows
// to trigger, which workflow steps to move chats into, and the tabulation
// id for each finish reason.
type Routing struct {
	AutoDistributionFlow int
	AuthorizationFlow    int
	ApprovedStep         string
	Tabulations          map[string]string
}

// Service combines API calls into the business actions the bot engine
// takes: send a templated message, hand off to a human, finish a chat.
type Service struct {
	api     ChatAPI
	catalog *messages.Catalog
	routing Routing
	logger  *slog.Logger
}

// NewService creates a Service. If logger is nil, slog.Default() is used.
func NewService(api ChatAPI, catalog *messages.Catalog, routing Routing, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, catalog: catalog, routing: routing, logger: logger}
}

// SendMessage renders the template for key and delivers it. forceInternal
// upgrades the message to operator-only even when the template is public.
func (s *Service) SendMessage(ctx context.Context, chatID, key string, variables map[string]string, forceInternal bool) error {
	tpl, err := s.catalog.Render(key, variables)
	if err != nil {
		return err
	}

	return s.api.PostMessage(ctx, chatID, OutboundMessage{
		Text:     tpl.Text,
		Options:  tpl.Options,
		File:     tpl.File,
		Internal: tpl.Internal || forceInternal,
	})
}

// FinishAttendance removes the chat from its workflow and closes it with
// the tabulation registered for reason. A workflow-removal failure is
// logged but does not block the close.
func (s *Service) FinishAttendance(ctx context.Context, chatID, reason string) error {
	tabulationID := s.routing.Tabulations[reason]
	if tabulationID == "" {
		return ErrNoTabulation
	}

	if err := s.RemoveFromWorkflow(ctx, chatID); err != nil {
		s.logger.WarnContext(ctx, "workflow_removal_failed",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}

	return s.api.CloseChat(ctx, chatID, tabulationID)
}

// RemoveFromWorkflow takes the chat out of whatever workflow it is in.
func (s *Service) RemoveFromWorkflow(ctx context.Context, chatID string) error {
	return s.api.UpdateWorkflowStep(ctx, chatID, exitWorkflowStep)
}

// StartAutoDistribution hands the chat to a human via the distribution
// flow.
func (s *Service) StartAutoDistribution(ctx context.Context, chatID string) error {
	return s.api.TriggerFlow(ctx, chatID, s.routing.AutoDistributionFlow)
}

// StartAuthorizationFlow walks the customer through authorizing the bank
// in the FGTS app.
func (s *Service) StartAuthorizationFlow(ctx context.Context, chatID string) error {
	return s.api.TriggerFlow(ctx, chatID, s.routing.AuthorizationFlow)
}

// MoveToApproved puts the chat in the approved workflow step.
func (s *Service) MoveToApproved(ctx context.Context, chatID string) error {
	return s.api.UpdateWorkflowStep(ctx, chatID, s.routing.ApprovedStep)
}
