package domain

import (
	"time"
	"unicode/utf8"
)

const (
	// DefaultRoundCount is the fixed number of prompts per typing room.
	DefaultRoundCount = 5

	// DefaultTimeLimit is each participant's personal deadline per round,
	// counted from their first keystroke.
	DefaultTimeLimit = 60 * time.Second

	// DefaultInputSlack bounds how far past the prompt length an input value
	// is accepted before being clamped.
	DefaultInputSlack = 200
)

// TypingRoom holds the authoritative, in-memory state of one typing race.
// It is not safe for concurrent use; the caller serializes access per room.
type TypingRoom struct {
	ID           string
	CreatedAt    time.Time
	Rounds       []string
	CurrentRound int
	TimeLimit    time.Duration
	InputSlack   int
	Participants map[string]*Participant
	Voice        map[string]*VoiceParticipant
}

// UpdateResult describes what a single input update changed.
type UpdateResult struct {
	Applied   bool
	Completed bool
	TimedOut  bool
	NewFlags  []FlagKind
}

func NewTypingRoom(id string, rounds []string, timeLimit time.Duration, inputSlack int) *TypingRoom {
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	if inputSlack <= 0 {
		inputSlack = DefaultInputSlack
	}

	return &TypingRoom{
		ID:           id,
		CreatedAt:    time.Now().UTC(),
		Rounds:       rounds,
		TimeLimit:    timeLimit,
		InputSlack:   inputSlack,
		Participants: make(map[string]*Participant),
		Voice:        make(map[string]*VoiceParticipant),
	}
}

// CurrentPrompt returns the prompt text of the active round.
func (r *TypingRoom) CurrentPrompt() string {
	if r.CurrentRound < 0 || r.CurrentRound >= len(r.Rounds) {
		return ""
	}
	return r.Rounds[r.CurrentRound]
}

// Join creates a participant, or re-attaches an existing one without touching
// its accumulated score, flags, or completion state.
func (r *TypingRoom) Join(connectionID, rawUsername string) (*Participant, error) {
	username, err := ValidateUsername(rawUsername)
	if err != nil {
		return nil, err
	}

	if p, ok := r.Participants[connectionID]; ok {
		// Reconnect: merge mutable fields only.
		p.Username = username
		return p, nil
	}

	p := newParticipant(connectionID, username)
	r.Participants[connectionID] = p
	return p, nil
}

// Update applies one input snapshot from a participant's own connection.
// now is the relay's wall clock; deadlines are pure functions of it.
func (r *TypingRoom) Update(connectionID, typed string, isPaste bool, explicitDelta int, now time.Time) UpdateResult {
	p, ok := r.Participants[connectionID]
	if !ok || p.terminal() {
		return UpdateResult{}
	}

	prompt := r.CurrentPrompt()
	typed = clampInput(typed, utf8.RuneCountInString(prompt)+r.InputSlack)

	// The personal clock starts on the first keystroke, not on join.
	if p.StartedAt.IsZero() {
		p.StartedAt = now
		p.ExpiresAt = now.Add(r.TimeLimit)
	} else if !now.Before(p.ExpiresAt) {
		p.IsTimeUp = true
		return UpdateResult{Applied: true, TimedOut: true}
	}

	delta := utf8.RuneCountInString(typed) - p.LastInputLength
	var elapsed time.Duration
	hasPrevious := !p.LastUpdateAt.IsZero()
	if hasPrevious {
		elapsed = now.Sub(p.LastUpdateAt)
	}

	result := UpdateResult{Applied: true}
	raise := func(kind FlagKind) {
		if p.flag(kind) {
			result.NewFlags = append(result.NewFlags, kind)
		}
	}

	// Two paste vectors arrive from different client code paths; both are
	// honored independently.
	if isPaste && delta >= pasteLengthDelta {
		raise(FlagPasteDetected)
	}
	if !isPaste && hasPrevious && delta >= pasteLengthDelta && elapsed < pasteBurstWindow {
		raise(FlagPasteDetected)
	}
	if explicitDelta >= pasteLengthDelta {
		raise(FlagPasteDetected)
	}

	if hasPrevious && elapsed > 0 {
		rate := absFloat(float64(delta)) / elapsed.Seconds()
		if rate > speedLimitCharsPerSec {
			raise(FlagSpeedWarning)
		}
	}

	score, typedLen, correct := scoreAgainst(prompt, typed)
	p.Score = p.roundBase + score
	p.TypedLength = typedLen
	p.CorrectChars = correct
	p.LastInputLength = typedLen
	p.LastInputValue = typed
	p.LastUpdateAt = now

	// An empty prompt can never be completed by the length rule.
	promptLen := utf8.RuneCountInString(prompt)
	if promptLen > 0 && typedLen >= promptLen {
		p.IsCompleted = true
		p.CompletionTime = now
		result.Completed = true
	}

	return result
}

// Leave removes the participant and any voice entry. It reports whether the
// room is now empty and should be deleted.
func (r *TypingRoom) Leave(connectionID string) bool {
	delete(r.Participants, connectionID)
	delete(r.Voice, connectionID)
	return len(r.Participants) == 0
}

// AllTerminal reports whether every participant finished the current round.
// An empty room is never considered terminal.
func (r *TypingRoom) AllTerminal() bool {
	if len(r.Participants) == 0 {
		return false
	}
	for _, p := range r.Participants {
		if !p.terminal() {
			return false
		}
	}
	return true
}

// AdvanceRound moves to the next prompt once the current round is settled,
// resetting per-round progress while keeping cumulative scores and flags.
// It reports whether a new round actually started.
func (r *TypingRoom) AdvanceRound() bool {
	if !r.AllTerminal() || r.CurrentRound+1 >= len(r.Rounds) {
		return false
	}

	r.CurrentRound++
	for _, p := range r.Participants {
		p.resetForRound()
	}
	return true
}

func clampInput(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
