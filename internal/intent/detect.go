package intent

import "strings"

// Trigger phrases for the password-reset short circuit. Matching is
// case-insensitive substring containment — no model call involved.
var passwordResetTriggers = []string{
	"forgot my password",
	"reset my password",
	"password reset",
	"password expired",
	"can't log in",
	"cannot log in",
	"can't login",
	"cannot login",
	"locked out of my account",
	"locked out",
}

// DetectPasswordReset reports whether the question asks for a password
// reset. A positive match short-circuits all downstream processing,
// including the open-ticket check and the classifier.
func DetectPasswordReset(question string) bool {
	q := strings.ToLower(question)
	for _, trigger := range passwordResetTriggers {
		if strings.Contains(q, trigger) {
			return true
		}
	}
	return false
}

// StatusScope identifies which open-ticket listing a status query asks for.
type StatusScope string

const (
	ScopeIncidents StatusScope = "incidents"
	ScopeRequests  StatusScope = "requests"
	ScopeTasks     StatusScope = "tasks"
)

// DetectStatusQuery reports whether the question asks for the user's open
// tickets and which listing it wants. Status queries never produce a new
// ticket.
func DetectStatusQuery(question string) (StatusScope, bool) {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "open incidents"):
		return ScopeIncidents, true
	case strings.Contains(q, "open requests"):
		return ScopeRequests, true
	case strings.Contains(q, "open tasks"):
		return ScopeTasks, true
	}
	return "", false
}
