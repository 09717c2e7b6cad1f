// Package session holds the conversation state shared across completion
// calls: message history, default prompt configuration, and running token
// usage totals.
//
// A Session is owned by a single caller; there is no internal locking.
// Callers that share a session across goroutines must serialize access
// themselves.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/ruderlabs/ruder/pkg/chat"
)

// DefaultSystem is the system prompt used when none is configured.
const DefaultSystem = "You are a helpful assistant."

// defaultTemperature matches the conservative sampling default of the
// backends this client targets.
const defaultTemperature = 0.3

// Session is the conversation state for a sequence of completion calls.
// The client appends messages and adds usage; it never rewrites history.
type Session struct {
	// ID identifies the session in logs and stores.
	ID uuid.UUID

	// Created is the session creation time.
	Created time.Time

	// Model is the backend model identifier sent with every request.
	Model string

	// System is the default system prompt, used when a call passes none.
	System string

	// Params are the default generation parameters. The client clones
	// them before injecting per-call constraints.
	Params *chat.GenParams

	// SaveMessages is the session-wide persistence policy, applied when a
	// call does not pass an explicit flag.
	SaveMessages bool

	// Messages is the ordered conversation history.
	Messages []chat.Message

	// Running usage totals, summed from non-streamed responses. They only
	// ever increase. Streaming calls contribute nothing (streamed frames
	// carry no usage block).
	TotalPromptTokens     int
	TotalCompletionTokens int
	TotalTokens           int
}

// New creates a session for the given model with default system prompt,
// parameters, and persistence policy.
func New(model string) *Session {
	temp := defaultTemperature
	return &Session{
		ID:           uuid.New(),
		Created:      time.Now().UTC(),
		Model:        model,
		System:       DefaultSystem,
		Params:       &chat.GenParams{Temperature: &temp},
		SaveMessages: true,
	}
}

// AddMessages appends a user/assistant message pair to the history. If
// save is nil, the session-wide SaveMessages policy decides; otherwise
// the explicit flag does.
func (s *Session) AddMessages(user, assistant chat.Message, save *bool) {
	persist := s.SaveMessages
	if save != nil {
		persist = *save
	}
	if !persist {
		return
	}
	s.Messages = append(s.Messages, user, assistant)
}

// FormatInputMessages builds the ordered message list for a request:
// system prompt, then history, then the new user message.
func (s *Session) FormatInputMessages(system, user chat.Message) []chat.Message {
	msgs := make([]chat.Message, 0, len(s.Messages)+2)
	msgs = append(msgs, system)
	msgs = append(msgs, s.Messages...)
	msgs = append(msgs, user)
	return msgs
}

// AddUsage adds a response's usage triple to the running totals.
func (s *Session) AddUsage(u chat.Usage) {
	s.TotalPromptTokens += u.PromptTokens
	s.TotalCompletionTokens += u.CompletionTokens
	s.TotalTokens += u.TotalTokens
}

// Totals returns the accumulated usage for the session's lifetime.
func (s *Session) Totals() chat.Usage {
	return chat.Usage{
		PromptTokens:     s.TotalPromptTokens,
		CompletionTokens: s.TotalCompletionTokens,
		TotalTokens:      s.TotalTokens,
	}
}
