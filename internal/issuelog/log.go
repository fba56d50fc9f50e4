// Package issuelog tracks the questions each user has raised, so the
// assistant can notice when the same issue keeps coming back.
package issuelog

import (
	"strings"
	"sync"
)

// Log is an append-only record of normalized question text per user.
// Entries are never removed and insertion order is preserved.
type Log interface {
	Append(user, question string)
	Count(user, question string) int
}

// Normalize case-folds a question so repeats differing only in case
// count as the same issue.
func Normalize(question string) string {
	return strings.ToLower(question)
}

// Repeated reports whether the question has been logged at least twice
// for the user. Used as an escalation signal.
func Repeated(l Log, user, question string) bool {
	return l.Count(user, question) >= 2
}

// MemoryLog keeps the issue history in memory. Safe for concurrent use.
type MemoryLog struct {
	mu      sync.Mutex
	entries map[string][]string
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{entries: make(map[string][]string)}
}

func (l *MemoryLog) Append(user, question string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[user] = append(l.entries[user], Normalize(question))
}

func (l *MemoryLog) Count(user, question string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	normalized := Normalize(question)
	count := 0
	for _, entry := range l.entries[user] {
		if entry == normalized {
			count++
		}
	}
	return count
}
