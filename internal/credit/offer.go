// Package credit turns raw upstream eligibility responses into a single
// canonical Offer the bot engine can act on.
package credit

import (
	"time"

	"github.com/emprestedigital/creditbot/internal/facta"
)

// Offer is the standardized result of one eligibility check: which outcome
// the upstream reported, which message template the user should receive and
// with which variables.
type Offer struct {
	Outcome    facta.Outcome
	MessageKey string
	Variables  map[string]string

	// Internal marks messages that must stay visible to operators only
	// (diagnostic notes for unmapped upstream returns).
	Internal bool

	// NetAmount is the approved net value; only set for OutcomeSuccess.
	NetAmount float64
}

// SecondBusinessDayOfNextMonth returns the second weekday of the month
// following t, formatted dd/mm/yyyy. Used in the birthday-window message to
// tell the customer when to come back.
func SecondBusinessDayOfNextMonth(t time.Time) string {
	d := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
	seen := 0
	for {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			seen++
			if seen == 2 {
				return d.Format("02/01/2006")
			}
		}
		d = d.AddDate(0, 0, 1)
	}
}
