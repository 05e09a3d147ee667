package domain

import (
	"time"
)

// FlagKind labels an anti-cheat heuristic. Flags are additive: once raised
// for a round they are never retracted.
type FlagKind string

const (
	FlagPasteDetected FlagKind = "paste-detected"
	FlagSpeedWarning  FlagKind = "speed-warning"
)

const (
	// pasteLengthDelta is the minimum jump in input length treated as a paste.
	pasteLengthDelta = 10

	// pasteBurstWindow is how close together two updates must land for a large
	// length jump to count as a paste even without a client hint.
	pasteBurstWindow = 400 * time.Millisecond

	// speedLimitCharsPerSec is the instantaneous character rate above which a
	// speed warning is raised.
	speedLimitCharsPerSec = 15.0
)

// Participant is one connection's competitive state within a typing room.
// It is mutated only by its room, in response to that connection's updates.
type Participant struct {
	ConnectionID    string            `json:"connectionId"`
	Username        string            `json:"username"`
	Score           int               `json:"score"`
	TypedLength     int               `json:"typedLength"`
	CorrectChars    int               `json:"correctChars"`
	LastInputLength int               `json:"-"`
	LastInputValue  string            `json:"-"`
	LastUpdateAt    time.Time         `json:"-"`
	IsCompleted     bool              `json:"isCompleted"`
	CompletionTime  time.Time         `json:"completionTime,omitzero"`
	Flags           map[FlagKind]bool `json:"-"`
	IsFlagged       bool              `json:"isFlagged"`
	StartedAt       time.Time         `json:"-"`
	ExpiresAt       time.Time         `json:"-"`
	IsTimeUp        bool              `json:"isTimeUp"`

	// roundBase is the score carried over from completed rounds; the score of
	// the round in progress is recomputed on every update and added to it.
	roundBase int
}

func newParticipant(connectionID, username string) *Participant {
	return &Participant{
		ConnectionID: connectionID,
		Username:     username,
		Flags:        make(map[FlagKind]bool),
	}
}

// terminal reports whether the participant finished the current round, one
// way or the other. Terminal participants ignore further input.
func (p *Participant) terminal() bool {
	return p.IsCompleted || p.IsTimeUp
}

func (p *Participant) flag(kind FlagKind) bool {
	if p.Flags[kind] {
		return false
	}
	p.Flags[kind] = true
	p.IsFlagged = true
	return true
}

// FlagList returns the raised flags in a stable order.
func (p *Participant) FlagList() []FlagKind {
	flags := make([]FlagKind, 0, len(p.Flags))
	for _, kind := range []FlagKind{FlagPasteDetected, FlagSpeedWarning} {
		if p.Flags[kind] {
			flags = append(flags, kind)
		}
	}
	return flags
}

// resetForRound clears round-scoped progress ahead of the next prompt.
// Cumulative score and raised flags survive round boundaries.
func (p *Participant) resetForRound() {
	p.roundBase = p.Score
	p.TypedLength = 0
	p.CorrectChars = 0
	p.LastInputLength = 0
	p.LastInputValue = ""
	p.LastUpdateAt = time.Time{}
	p.IsCompleted = false
	p.CompletionTime = time.Time{}
	p.StartedAt = time.Time{}
	p.ExpiresAt = time.Time{}
	p.IsTimeUp = false
}

// scoreAgainst compares typed input to the prompt character by character:
// +1 for every match, -1 for every mismatch or character beyond the prompt.
func scoreAgainst(prompt, typed string) (score, typedLen, correct int) {
	promptRunes := []rune(prompt)
	typedRunes := []rune(typed)

	for i, r := range typedRunes {
		if i < len(promptRunes) && r == promptRunes[i] {
			score++
			correct++
		} else {
			score--
		}
	}
	return score, len(typedRunes), correct
}
