package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/emprestedigital/creditbot/internal/observability"
	"github.com/emprestedigital/creditbot/internal/session"
	"github.com/emprestedigital/creditbot/internal/taskqueue"
)

// TimeoutAction is what a fired ticket does when still valid.
type TimeoutAction string

const (
	// ActionTransition nudges the conversation into a follow-up state and
	// re-arms that state's own policy.
	ActionTransition TimeoutAction = "TRANSITION"

	// ActionKill finishes the attendance and clears the session.
	ActionKill TimeoutAction = "KILL"
)

// TimeoutPolicy describes what happens when a conversation sits in one
// state with no customer reply for After.
type TimeoutPolicy struct {
	After      time.Duration
	Action     TimeoutAction
	NextState  session.State
	MessageKey string

	// FinishReason is set for kill policies.
	FinishReason string
}

// DefaultTimeoutPolicies is the escalation ladder: menu nudges at 10 and
// 30 minutes then a 5 hour kill, and a 5 minute nudge while waiting for a
// CPF followed by the same 5 hour kill.
func DefaultTimeoutPolicies() map[session.State]TimeoutPolicy {
	return map[session.State]TimeoutPolicy{
		StateMenu: {
			After:      10 * time.Minute,
			Action:     ActionTransition,
			NextState:  StateMenuTimeout1,
			MessageKey: "menu_timeout_1",
		},
		StateMenuTimeout1: {
			After:      30 * time.Minute,
			Action:     ActionTransition,
			NextState:  StateMenuTimeout2,
			MessageKey: "menu_timeout_2",
		},
		StateMenuTimeout2: {
			After:        5 * time.Hour,
			Action:       ActionKill,
			MessageKey:   "timeout_goodbye",
			FinishReason: ReasonNoCustomerReply,
		},
		StateCLTAwaitingCPF: {
			After:      5 * time.Minute,
			Action:     ActionTransition,
			NextState:  StateCPFTimeout,
			MessageKey: "cpf_timeout_warn",
		},
		StateFGTSAwaitingCPF: {
			After:      5 * time.Minute,
			Action:     ActionTransition,
			NextState:  StateCPFTimeout,
			MessageKey: "cpf_timeout_warn",
		},
		StateCPFTimeout: {
			After:        5 * time.Hour,
			Action:       ActionKill,
			MessageKey:   "timeout_goodbye",
			FinishReason: ReasonNoCustomerReply,
		},
	}
}

// Scheduler arms inactivity tickets and evaluates them at fire time.
//
// Tickets are never removed from the queue ahead of time; a ticket whose
// conversation moved on, or whose customer spoke after it was dispatched,
// invalidates itself at fire time.
type Scheduler struct {
	queue    taskqueue.Queue
	sessions session.Store
	chat     ChatActions
	policies map[session.State]TimeoutPolicy
	logger   *slog.Logger
	now      func() time.Time
}

// NewScheduler creates a Scheduler with the default policy table. If
// logger is nil, slog.Default() is used.
func NewScheduler(queue taskqueue.Queue, sessions session.Store, chat ChatActions, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		queue:    queue,
		sessions: sessions,
		chat:     chat,
		policies: DefaultTimeoutPolicies(),
		logger:   logger,
		now:      time.Now,
	}
}

// Arm enqueues an inactivity ticket for chatID if state has a policy.
// dispatchedAt must be the interaction timestamp recorded for the event
// that put the conversation in state.
func (s *Scheduler) Arm(ctx context.Context, chatID string, state session.State, dispatchedAt time.Time) error {
	policy, ok := s.policies[state]
	if !ok {
		return nil
	}

	return s.queue.Enqueue(ctx, taskqueue.Task{
		ID:     uuid.NewString(),
		Type:   taskqueue.TaskTypeCheckInactivity,
		ChatID: chatID,
		Check: taskqueue.InactivityCheck{
			ChatID:        chatID,
			ExpectedState: state,
			DispatchedAt:  dispatchedAt,
		},
		EnqueuedAt: s.now(),
		NotBefore:  s.now().Add(policy.After),
	})
}

// Fire evaluates a due ticket. A ticket is stale, and a no-op, when the
// session left ExpectedState or the customer interacted after
// DispatchedAt; state and timestamp are read in one snapshot so a
// concurrent touch cannot split the decision.
func (s *Scheduler) Fire(ctx context.Context, check taskqueue.InactivityCheck) error {
	sess, err := s.sessions.Get(ctx, check.ChatID)
	if err != nil {
		return err
	}

	if sess.State != check.ExpectedState || sess.LastInteractionAt.After(check.DispatchedAt) {
		observability.TimeoutsFired.WithLabelValues("stale").Inc()
		s.logger.DebugContext(ctx, "timeout_ticket_stale",
			slog.String("chat_id", check.ChatID),
			slog.String("expected_state", string(check.ExpectedState)),
			slog.String("current_state", string(sess.State)),
		)
		return nil
	}

	policy, ok := s.policies[check.ExpectedState]
	if !ok {
		return nil
	}

	s.logger.InfoContext(ctx, "timeout_fired",
		slog.String("chat_id", check.ChatID),
		slog.String("state", string(check.ExpectedState)),
		slog.String("action", string(policy.Action)),
	)

	switch policy.Action {
	case ActionTransition:
		observability.TimeoutsFired.WithLabelValues("transition").Inc()
		if err := s.chat.SendMessage(ctx, check.ChatID, policy.MessageKey, nil, false); err != nil {
			s.logger.WarnContext(ctx, "timeout_message_failed",
				slog.String("chat_id", check.ChatID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.sessions.SetState(ctx, check.ChatID, policy.NextState); err != nil {
			return err
		}
		// The chain keeps measuring silence from the original
		// interaction, so the ticket's timestamp carries over.
		return s.Arm(ctx, check.ChatID, policy.NextState, check.DispatchedAt)

	case ActionKill:
		observability.TimeoutsFired.WithLabelValues("kill").Inc()
		if err := s.chat.SendMessage(ctx, check.ChatID, policy.MessageKey, nil, false); err != nil {
			s.logger.WarnContext(ctx, "timeout_message_failed",
				slog.String("chat_id", check.ChatID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.chat.FinishAttendance(ctx, check.ChatID, policy.FinishReason); err != nil {
			s.logger.WarnContext(ctx, "timeout_finish_failed",
				slog.String("chat_id", check.ChatID),
				slog.String("error", err.Error()),
			)
		}
		return s.sessions.Clear(ctx, check.ChatID)
	}

	return nil
}
