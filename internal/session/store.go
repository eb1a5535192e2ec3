// Package session persists per-conversation state for the bot engine.
//
// A session is keyed by the chat platform's conversation id and carries the
// current engine state, a free-form string context (e.g. the captured CPF)
// and the timestamp of the last inbound interaction. Sessions expire on
// their own after a period of inactivity; expiry is a safety net, the
// primary termination path is Clear on conversation close.
package session

import (
	"context"
	"time"
)

// State names one position in the conversation state machine. The bot
// package declares the full set; stores treat it as opaque and only
// convert to a plain string at the Redis boundary.
type State string

// StateStart is the implicit state of a conversation that has no stored
// session yet. Stores must return it, with an empty context, instead of a
// not-found error.
const StateStart State = "START"

// Session is a snapshot of one conversation's persisted state.
//
// State and LastInteractionAt are read together in a single round trip so a
// timeout check never sees a state from one event paired with a timestamp
// from another.
type Session struct {
	State             State
	Context           map[string]string
	LastInteractionAt time.Time
}

// Store is the persistence contract for conversation sessions.
//
// All writes refresh the session TTL. Store errors are transient
// infrastructure failures and should be surfaced to the caller, never
// swallowed; the only deliberate default is "missing session means START".
type Store interface {
	// Get returns the session for chatID. A conversation with no stored
	// session yields {State: StateStart, Context: empty}.
	Get(ctx context.Context, chatID string) (Session, error)

	// SetState stores the conversation state.
	SetState(ctx context.Context, chatID string, state State) error

	// SetContext stores the free-form context map, replacing the previous one.
	SetContext(ctx context.Context, chatID string, data map[string]string) error

	// Touch records "the user interacted now" and returns the recorded
	// timestamp. It must be called once per inbound event, before any
	// timeout is armed from that event.
	Touch(ctx context.Context, chatID string) (time.Time, error)

	// Clear deletes the session entirely. Clearing a missing session is not
	// an error.
	Clear(ctx context.Context, chatID string) error
}
