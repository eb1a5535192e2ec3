package facta

import (
	"regexp"
	"slices"
	"strings"
)

// BalanceResponse is the raw shape of a /fgts/saldo reply, plus a transport
// error slot the client fills in when the HTTP call itself failed. The
// Translator is the only consumer.
type BalanceResponse struct {
	// TransportErr is set by the client when no business response exists
	// (connection failure, timeout, malformed body). It is not part of the
	// wire format.
	TransportErr error `json:"-"`

	Err     bool           `json:"erro"`
	Code    *int           `json:"codigo"`
	Message string         `json:"mensagem"`
	Payload map[string]any `json:"retorno"`
}

// Result is the translated view of a balance response.
type Result struct {
	Outcome Outcome
	// Message preserves the upstream text, untranslated, for diagnostics.
	Message string
	// Balance is the parsed total balance; only meaningful for OutcomeSuccess.
	Balance float64
}

// throttlePattern matches the upstream's rate-limit message
// ("volte em N segundos"). It wins over any error code.
var throttlePattern = regexp.MustCompile(`volte em \d+ segundos`)

// Interpret classifies a raw balance response into a canonical outcome.
//
// It is pure and total: every input maps to exactly one outcome, defaulting
// to OutcomeSystemError with the original message preserved. The rule order
// is load-bearing — the upstream signals some failures only by numeric code
// and others only by free text, and text patterns must not shadow the more
// specific codes:
//
//  1. transport failure injected by the client
//  2. no error flag: success, balance parsed from the payload
//  3. throttle message pattern, regardless of code
//  4. exact numeric codes
//  5. free-text fallbacks (only when no code matched)
//  6. everything else: system error
func Interpret(resp BalanceResponse) Result {
	if resp.TransportErr != nil {
		msg := resp.Message
		if msg == "" {
			msg = resp.TransportErr.Error()
		}
		return Result{Outcome: OutcomeSystemError, Message: msg}
	}

	if !resp.Err {
		return Result{
			Outcome: OutcomeSuccess,
			Message: resp.Message,
			Balance: ParseAmount(resp.Payload["saldo_total"]),
		}
	}

	msg := strings.ToLower(resp.Message)

	if throttlePattern.MatchString(msg) {
		return Result{Outcome: OutcomeThrottled, Message: resp.Message}
	}

	if resp.Code != nil {
		switch code := *resp.Code; {
		case code == 7:
			return Result{Outcome: OutcomeNeedsAuthorization, Message: resp.Message}
		case code == 9:
			return Result{Outcome: OutcomeNeedsEnrollment, Message: resp.Message}
		case code == 35:
			return Result{Outcome: OutcomeDataMismatch, Message: resp.Message}
		case code == 5 || code == 10:
			return Result{Outcome: OutcomeBirthdayWindow, Message: resp.Message}
		case code == 102:
			return Result{Outcome: OutcomeBalanceNotFound, Message: resp.Message}
		case slices.Contains([]int{101, 104}, code):
			return Result{Outcome: OutcomeNoBalance, Message: resp.Message}
		}
	}

	// Free-text fallbacks for the responses that carry no usable code.
	switch {
	case strings.Contains(msg, "saldo não encontrado"):
		return Result{Outcome: OutcomeBalanceNotFound, Message: resp.Message}
	case strings.Contains(msg, "não possui saldo"), strings.Contains(msg, "saldo fgts"):
		return Result{Outcome: OutcomeNoBalance, Message: resp.Message}
	case strings.Contains(msg, "autorização"):
		return Result{Outcome: OutcomeNeedsAuthorization, Message: resp.Message}
	}

	return Result{Outcome: OutcomeSystemError, Message: resp.Message}
}
