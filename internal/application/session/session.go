// Package session assigns the identifiers one exploration run threads
// through persistence and the LLM transcript: a stable run id for
// snapshot storage, and a fresh correlation id per LLM request so a
// transcript log line can be tied back to the exchange that produced it
// (spec.md §6, §12).
package session

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies one exploration run from start to finish.
type Session struct {
	ID         string
	AppPackage string
	StartedAt  time.Time
}

// New creates a Session with a fresh run id for appPackage.
func New(appPackage string) *Session {
	return &Session{
		ID:         uuid.New().String(),
		AppPackage: appPackage,
		StartedAt:  time.Now(),
	}
}

// NextCorrelationID returns a fresh id to tag one LLM request/response pair
// in the transcript. Unlike ID, this is called once per LLM round trip, not
// once per run.
func (s *Session) NextCorrelationID() string {
	return uuid.New().String()
}
