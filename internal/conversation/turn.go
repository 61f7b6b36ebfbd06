// Package conversation keeps a bounded, periodically summarized history of
// chat turns.
package conversation

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser          Speaker = "user"
	SpeakerAssistant     Speaker = "assistant"
	SpeakerSystemSummary Speaker = "system_summary"
)

// Valid reports whether s is a known speaker.
func (s Speaker) Valid() bool {
	switch s {
	case SpeakerUser, SpeakerAssistant, SpeakerSystemSummary:
		return true
	}
	return false
}

// Turn is one utterance in a conversation. Turns are values and are never
// modified after NewTurn returns.
type Turn struct {
	ID         string    `json:"id"`
	Speaker    Speaker   `json:"speaker"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	CharLength int       `json:"char_length"`
}

// NewTurn stamps a new turn with a fresh ID, the current time and its rune count.
func NewTurn(speaker Speaker, text string) Turn {
	return Turn{
		ID:         uuid.NewString(),
		Speaker:    speaker,
		Text:       text,
		Timestamp:  time.Now(),
		CharLength: utf8.RuneCountInString(text),
	}
}

// IsSummary reports whether the turn stands in for earlier summarized turns.
func (t Turn) IsSummary() bool { return t.Speaker == SpeakerSystemSummary }
