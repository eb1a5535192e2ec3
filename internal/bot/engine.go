package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/emprestedigital/creditbot/internal/credit"
	"github.com/emprestedigital/creditbot/internal/document"
	"github.com/emprestedigital/creditbot/internal/facta"
	"github.com/emprestedigital/creditbot/internal/observability"
	"github.com/emprestedigital/creditbot/internal/session"
)

// ChatActions is what the engine needs from the chat platform facade.
type ChatActions interface {
	SendMessage(ctx context.Context, chatID, key string, variables map[string]string, forceInternal bool) error
	FinishAttendance(ctx context.Context, chatID, reason string) error
	StartAutoDistribution(ctx context.Context, chatID string) error
	StartAuthorizationFlow(ctx context.Context, chatID string) error
	MoveToApproved(ctx context.Context, chatID string) error
}

// OfferService produces the best credit offer for a document number.
type OfferService interface {
	BestOffer(ctx context.Context, cpf string) credit.Offer
}

// Engine is the conversation state machine. One inbound event advances
// one conversation: load session, evaluate state against input, perform
// chat actions, persist the next state, arm a timeout when the new state
// has a policy.
//
// Chat platform failures do not abort the turn; they are logged and the
// transition still commits, so the customer is never stuck in a state the
// store disagrees with.
type Engine struct {
	sessions  session.Store
	chat      ChatActions
	offers    OfferService
	scheduler *Scheduler
	logger    *slog.Logger
}

// NewEngine creates an Engine. If logger is nil, slog.Default() is used.
func NewEngine(sessions session.Store, chat ChatActions, offers OfferService, scheduler *Scheduler, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		sessions:  sessions,
		chat:      chat,
		offers:    offers,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Process advances the conversation with one inbound text event. The
// session is touched first so the timestamp armed into any resulting
// timeout ticket reflects this event.
func (e *Engine) Process(ctx context.Context, chatID, text string) error {
	touchedAt, err := e.sessions.Touch(ctx, chatID)
	if err != nil {
		return err
	}

	sess, err := e.sessions.Get(ctx, chatID)
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "event_received",
		slog.String("chat_id", chatID),
		slog.String("state", string(sess.State)),
	)

	var next session.State
	switch sess.State {
	case StateStart:
		next = e.handleStart(ctx, chatID, text)
	case StateMenu, StateMenuTimeout1, StateMenuTimeout2:
		next = e.handleMenu(ctx, chatID, text)
	case StateCPFTimeout:
		next = e.handleCPFTimeout(ctx, chatID, text, sess.State)
	case StateCLTAwaitingCPF, StateCLTCPFInvalid:
		next = e.handleCLTDocument(ctx, chatID, text, sess)
	case StateCLTAwaitingTenure:
		next = e.handleCLTTenure(ctx, chatID, text, sess.State)
	case StateFGTSAwaitingCPF, StateFGTSCPFInvalid:
		next = e.handleFGTSDocument(ctx, chatID, text, sess)
	case StateFinished:
		e.logger.InfoContext(ctx, "event_dropped_finished",
			slog.String("chat_id", chatID),
		)
		observability.EventsProcessed.WithLabelValues("dropped").Inc()
		return nil
	default:
		e.logger.ErrorContext(ctx, "unknown_state",
			slog.String("chat_id", chatID),
			slog.String("state", string(sess.State)),
		)
		observability.EventsProcessed.WithLabelValues("error").Inc()
		return nil
	}

	if next != sess.State {
		if err := e.sessions.SetState(ctx, chatID, next); err != nil {
			return err
		}
	}

	observability.EventsProcessed.WithLabelValues("processed").Inc()
	return e.armTimeout(ctx, chatID, next, touchedAt)
}

func (e *Engine) armTimeout(ctx context.Context, chatID string, state session.State, touchedAt time.Time) error {
	if state == StateFinished {
		return nil
	}
	return e.scheduler.Arm(ctx, chatID, state, touchedAt)
}

// handleStart evaluates the very first message. A customer that already
// answered with a menu option skips the welcome; everyone else gets the
// menu.
func (e *Engine) handleStart(ctx context.Context, chatID, text string) session.State {
	switch strings.TrimSpace(text) {
	case "1":
		e.send(ctx, chatID, "ask_document_id", nil, false)
		return StateCLTAwaitingCPF
	case "2":
		e.send(ctx, chatID, "ask_document_id", nil, false)
		return StateFGTSAwaitingCPF
	default:
		e.send(ctx, chatID, "welcome_menu", nil, false)
		return StateMenu
	}
}

func (e *Engine) handleMenu(ctx context.Context, chatID, text string) session.State {
	switch strings.TrimSpace(text) {
	case "1":
		e.send(ctx, chatID, "ask_document_id", nil, false)
		return StateCLTAwaitingCPF
	case "2":
		e.send(ctx, chatID, "ask_document_id", nil, false)
		return StateFGTSAwaitingCPF
	default:
		e.handoff(ctx, chatID)
		return StateFinished
	}
}

func (e *Engine) handleCPFTimeout(ctx context.Context, chatID, text string, current session.State) session.State {
	switch strings.TrimSpace(text) {
	case "1":
		if err := e.chat.StartAutoDistribution(ctx, chatID); err != nil {
			e.logAction(ctx, chatID, "auto_distribution", err)
		}
		return StateFinished
	case "2":
		e.send(ctx, chatID, "no_interest", nil, false)
		if err := e.chat.FinishAttendance(ctx, chatID, ReasonNoInterest); err != nil {
			e.logAction(ctx, chatID, "finish_attendance", err)
		}
		return StateFinished
	default:
		return current
	}
}

func (e *Engine) handleCLTDocument(ctx context.Context, chatID, text string, sess session.Session) session.State {
	cpf := document.CleanDigits(text)
	if !document.ValidateCPF(cpf) {
		return e.rejectDocument(ctx, chatID, sess.State, StateCLTAwaitingCPF, StateCLTCPFInvalid)
	}

	e.saveCPF(ctx, chatID, sess, cpf)
	e.send(ctx, chatID, "ask_registration_duration", nil, false)
	return StateCLTAwaitingTenure
}

func (e *Engine) handleCLTTenure(ctx context.Context, chatID, text string, current session.State) session.State {
	switch strings.TrimSpace(text) {
	case "1":
		e.send(ctx, chatID, "starting_simulation", nil, false)
		if err := e.chat.StartAutoDistribution(ctx, chatID); err != nil {
			e.logAction(ctx, chatID, "auto_distribution", err)
		}
		return StateFinished
	case "2":
		e.send(ctx, chatID, "requirements_fail", nil, false)
		if err := e.chat.FinishAttendance(ctx, chatID, ReasonShortTenure); err != nil {
			e.logAction(ctx, chatID, "finish_attendance", err)
		}
		return StateFinished
	default:
		return current
	}
}

func (e *Engine) handleFGTSDocument(ctx context.Context, chatID, text string, sess session.Session) session.State {
	cpf := document.CleanDigits(text)
	if !document.ValidateCPF(cpf) {
		return e.rejectDocument(ctx, chatID, sess.State, StateFGTSAwaitingCPF, StateFGTSCPFInvalid)
	}

	e.saveCPF(ctx, chatID, sess, cpf)
	e.send(ctx, chatID, "starting_simulation", nil, false)

	offer := e.offers.BestOffer(ctx, cpf)
	observability.UpstreamOutcomes.WithLabelValues(string(offer.Outcome)).Inc()

	e.send(ctx, chatID, offer.MessageKey, offer.Variables, offer.Internal)

	switch offer.Outcome {
	case facta.OutcomeSuccess:
		if err := e.chat.MoveToApproved(ctx, chatID); err != nil {
			e.logAction(ctx, chatID, "move_to_approved", err)
		}
		if err := e.chat.StartAutoDistribution(ctx, chatID); err != nil {
			e.logAction(ctx, chatID, "auto_distribution", err)
		}
	case facta.OutcomeNeedsAuthorization:
		if err := e.chat.StartAuthorizationFlow(ctx, chatID); err != nil {
			e.logAction(ctx, chatID, "authorization_flow", err)
		}
	case facta.OutcomeNeedsEnrollment:
		if err := e.chat.StartAutoDistribution(ctx, chatID); err != nil {
			e.logAction(ctx, chatID, "auto_distribution", err)
		}
	case facta.OutcomeDataMismatch:
		e.finish(ctx, chatID, ReasonDataMismatch)
	case facta.OutcomeBirthdayWindow:
		e.finish(ctx, chatID, ReasonBirthdayWindow)
	case facta.OutcomeBalanceNotFound:
		e.finish(ctx, chatID, ReasonBalanceNotFound)
	case facta.OutcomeNoBalance:
		e.finish(ctx, chatID, ReasonNoBalance)
	default:
		// Throttled, SystemError and anything unmapped need a human.
		if err := e.chat.StartAutoDistribution(ctx, chatID); err != nil {
			e.logAction(ctx, chatID, "auto_distribution", err)
		}
	}

	return StateFinished
}

// rejectDocument implements the two-strike rule for invalid CPFs: the
// first failure re-prompts, the second hands off to a human.
func (e *Engine) rejectDocument(ctx context.Context, chatID string, current, firstTry, retry session.State) session.State {
	if current == firstTry {
		e.send(ctx, chatID, "document_id_invalid", nil, false)
		return retry
	}

	e.send(ctx, chatID, "document_id_invalid_fallback", nil, true)
	if err := e.chat.StartAutoDistribution(ctx, chatID); err != nil {
		e.logAction(ctx, chatID, "auto_distribution", err)
	}
	return StateFinished
}

func (e *Engine) saveCPF(ctx context.Context, chatID string, sess session.Session, cpf string) {
	data := sess.Context
	if data == nil {
		data = make(map[string]string)
	}
	data[contextKeyCPF] = cpf
	if err := e.sessions.SetContext(ctx, chatID, data); err != nil {
		e.logAction(ctx, chatID, "set_context", err)
	}
}

func (e *Engine) handoff(ctx context.Context, chatID string) {
	e.send(ctx, chatID, "human_handoff", nil, false)
	if err := e.chat.StartAutoDistribution(ctx, chatID); err != nil {
		e.logAction(ctx, chatID, "auto_distribution", err)
	}
}

func (e *Engine) finish(ctx context.Context, chatID, reason string) {
	if err := e.chat.FinishAttendance(ctx, chatID, reason); err != nil {
		e.logAction(ctx, chatID, "finish_attendance", err)
	}
}

func (e *Engine) send(ctx context.Context, chatID, key string, variables map[string]string, forceInternal bool) {
	if err := e.chat.SendMessage(ctx, chatID, key, variables, forceInternal); err != nil {
		e.logAction(ctx, chatID, "send_message:"+key, err)
	}
}

func (e *Engine) logAction(ctx context.Context, chatID, action string, err error) {
	e.logger.ErrorContext(ctx, "chat_action_failed",
		slog.String("chat_id", chatID),
		slog.String("action", action),
		slog.String("error", err.Error()),
	)
}
