// Package bot implements the conversation state machine and the
// inactivity timeout scheduler built on top of it.
package bot

import "github.com/emprestedigital/creditbot/internal/session"

// Conversation states. StateStart is implicit for conversations with no
// stored session; StateFinished is terminal and drops further events.
const (
	StateStart                      = session.StateStart
	StateMenu         session.State = "MENU"
	StateMenuTimeout1 session.State = "MENU_TIMEOUT_1"
	StateMenuTimeout2 session.State = "MENU_TIMEOUT_2"

	StateCLTAwaitingCPF    session.State = "CLT_AWAITING_CPF"
	StateCLTCPFInvalid     session.State = "CLT_CPF_INVALID"
	StateCLTAwaitingTenure session.State = "CLT_AWAITING_TENURE"

	StateFGTSAwaitingCPF session.State = "FGTS_AWAITING_CPF"
	StateFGTSCPFInvalid  session.State = "FGTS_CPF_INVALID"

	StateCPFTimeout session.State = "CPF_TIMEOUT"

	StateFinished session.State = "FINISHED"
)

// Finish reasons. Each maps to a tabulation id in the Huggy routing
// config; closing a chat without one is refused.
const (
	ReasonNoCustomerReply = "NO_CUSTOMER_REPLY"
	ReasonNoInterest      = "NO_INTEREST"
	ReasonShortTenure     = "LESS_THAN_SIX_MONTHS"
	ReasonDataMismatch    = "DATA_MISMATCH"
	ReasonBirthdayWindow  = "BIRTHDAY_WINDOW"
	ReasonBalanceNotFound = "BALANCE_NOT_FOUND"
	ReasonNoBalance       = "NO_BALANCE"
)

// contextKeyCPF is where the captured document number lives in the
// session context.
const contextKeyCPF = "cpf"
