package webhooks

import "strings"

// Outcome is the appointment intent inferred from a call summary.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeConfirmed
	OutcomeCancelled
	OutcomeRescheduled
)

// Keyword lists are matched as lowercase substrings. Summaries come from the
// voice agent in Spanish, occasionally English; stems cover both where the
// languages share a root ("confirm" matches confirmó/confirmed/confirmar).
var (
	// Positive attendance stems like "asistirá" are deliberately absent
	// here: they are substrings of their own negations ("no asistirá")
	// and confirmation is checked first.
	confirmKeywords = []string{
		"confirm",
		"acepta la cita",
	}
	cancelKeywords = []string{
		"cancel",
		"anul",
		"no asistirá",
		"no va a asistir",
		"no acudirá",
		"no podrá asistir",
	}
	rescheduleKeywords = []string{
		"reschedul",
		"reprogram",
		"cambiar la fecha",
		"cambio de fecha",
		"otra fecha",
		"posponer",
		"aplaz",
	}
)

// ClassifySummary maps a post-call summary to an appointment outcome by
// keyword matching. Precedence is fixed: confirmation keywords are checked
// before cancellation, cancellation before reschedule; first match wins.
// It is a heuristic — a garbled summary may misclassify, and downstream
// state remains operator-correctable.
func ClassifySummary(summary string) Outcome {
	s := strings.ToLower(summary)
	if s == "" {
		return OutcomeNone
	}
	if containsAny(s, confirmKeywords) {
		return OutcomeConfirmed
	}
	if containsAny(s, cancelKeywords) {
		return OutcomeCancelled
	}
	if containsAny(s, rescheduleKeywords) {
		return OutcomeRescheduled
	}
	return OutcomeNone
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
