// Package facta integrates with the Facta FGTS webservice: credential
// renewal, balance and simulation calls, and the translation of its
// inconsistent responses into a closed set of outcomes.
package facta

// Outcome is the canonical classification of an upstream balance response.
// It is a closed set; the Translator maps every conceivable response into
// exactly one of these.
type Outcome string

const (
	// OutcomeSuccess means the balance came back and the flow can simulate.
	OutcomeSuccess Outcome = "SUCCESS"

	// OutcomeNeedsAuthorization means the worker has not authorized this
	// institution in the FGTS app yet.
	OutcomeNeedsAuthorization Outcome = "NEEDS_AUTHORIZATION"

	// OutcomeNeedsEnrollment means the worker has no active birthday-withdrawal
	// enrollment.
	OutcomeNeedsEnrollment Outcome = "NEEDS_ENROLLMENT"

	// OutcomeDataMismatch means recent registry changes block contracting.
	OutcomeDataMismatch Outcome = "DATA_MISMATCH"

	// OutcomeBirthdayWindow means an operation is blocked by the birthday
	// window (in-flight fiduciary operation or same-month restriction).
	OutcomeBirthdayWindow Outcome = "BIRTHDAY_WINDOW"

	// OutcomeThrottled means the upstream asked us to come back later.
	OutcomeThrottled Outcome = "THROTTLED"

	// OutcomeNoBalance means the account exists but has no usable balance.
	OutcomeNoBalance Outcome = "NO_BALANCE"

	// OutcomeBalanceNotFound means no FGTS balance record was located at all.
	OutcomeBalanceNotFound Outcome = "BALANCE_NOT_FOUND"

	// OutcomeSystemError covers transport failures and anything unmapped.
	// The original upstream message is preserved alongside for diagnostics.
	OutcomeSystemError Outcome = "SYSTEM_ERROR"
)
