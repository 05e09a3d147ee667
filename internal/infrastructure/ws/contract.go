package ws

import (
	"encoding/json"
	"time"

	"github.com/sketchdash/sketchdash/internal/domain"
)

// WSMessage is the outbound envelope.
type WSMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Data   any    `json:"data"`
}

// Request is the inbound envelope. Data stays raw until the event type
// tells us what, if anything, to decode.
type Request struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId"`
	Data   json.RawMessage `json:"data"`
}

// Error codes carried in ErrorPayload.
const (
	CodeValidation = "VALIDATION"
	CodeNotFound   = "NOT_FOUND"
	CodePermission = "PERMISSION"
	CodeConflict   = "CONFLICT"
)

// Inbound payloads.

type JoinPayload struct {
	Username string `json:"username"`
}

type TypingUpdatePayload struct {
	Typed   string `json:"typed"`
	IsPaste bool   `json:"isPaste,omitempty"`
	Delta   *int   `json:"delta,omitempty"`
}

type SignalPayload struct {
	Target  string          `json:"target"`
	Payload json.RawMessage `json:"payload"`
}

// Outbound payloads.

type MemberPayload struct {
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
	JoinedAt     string `json:"joinedAt,omitempty"`
}

type MemberListPayload struct {
	Members []MemberPayload `json:"members"`
}

type RoomUpdatePayload struct {
	MemberCount int `json:"memberCount"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
}

type PeerPayload struct {
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
}

type PeerListPayload struct {
	Peers []PeerPayload `json:"peers"`
}

// RelayedPayload tags an opaque payload with the connection it came from.
// Used for both draw events and voice signaling.
type RelayedPayload struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

type PromptPayload struct {
	Prompt           string `json:"prompt"`
	Round            int    `json:"round"`
	RoundCount       int    `json:"roundCount"`
	TimeLimitSeconds int    `json:"timeLimitSeconds"`
}

type LeaderboardEntry struct {
	ConnectionID string   `json:"connectionId"`
	Username     string   `json:"username"`
	Score        int      `json:"score"`
	TypedLength  int      `json:"typedLength"`
	CorrectChars int      `json:"correctChars"`
	IsCompleted  bool     `json:"isCompleted"`
	CompletionMs int64    `json:"completionMs,omitempty"`
	IsTimeUp     bool     `json:"isTimeUp"`
	IsFlagged    bool     `json:"isFlagged"`
	Flags        []string `json:"flags,omitempty"`
}

type LeaderboardPayload struct {
	Round   int                `json:"round"`
	Entries []LeaderboardEntry `json:"entries"`
}

type CompletionPayload struct {
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
	Score        int    `json:"score"`
	CompletionMs int64  `json:"completionMs"`
}

func NewMemberJoined(roomID string, member MemberPayload) *WSMessage {
	return &WSMessage{
		Type:   MemberJoined,
		RoomID: roomID,
		Data:   member,
	}
}

func NewMemberLeft(roomID, connectionID, username string) *WSMessage {
	return &WSMessage{
		Type:   MemberLeft,
		RoomID: roomID,
		Data: MemberPayload{
			ConnectionID: connectionID,
			Username:     username,
		},
	}
}

func NewMemberList(roomID string, members []MemberPayload) *WSMessage {
	return &WSMessage{
		Type:   MemberList,
		RoomID: roomID,
		Data:   MemberListPayload{Members: members},
	}
}

func NewRoomUpdate(roomID string, memberCount int) *WSMessage {
	return &WSMessage{
		Type:   RoomUpdate,
		RoomID: roomID,
		Data:   RoomUpdatePayload{MemberCount: memberCount},
	}
}

func NewPeerList(eventType, roomID string, peers []PeerPayload) *WSMessage {
	return &WSMessage{
		Type:   eventType,
		RoomID: roomID,
		Data:   PeerListPayload{Peers: peers},
	}
}

func NewPeerEvent(eventType, roomID string, peer PeerPayload) *WSMessage {
	return &WSMessage{
		Type:   eventType,
		RoomID: roomID,
		Data:   peer,
	}
}

func NewRelayed(eventType, roomID, from string, payload json.RawMessage) *WSMessage {
	return &WSMessage{
		Type:   eventType,
		RoomID: roomID,
		Data: RelayedPayload{
			From:    from,
			Payload: payload,
		},
	}
}

func NewPrompt(eventType, roomID string, room *domain.TypingRoom) *WSMessage {
	return &WSMessage{
		Type:   eventType,
		RoomID: roomID,
		Data: PromptPayload{
			Prompt:           room.CurrentPrompt(),
			Round:            room.CurrentRound + 1,
			RoundCount:       len(room.Rounds),
			TimeLimitSeconds: int(room.TimeLimit / time.Second),
		},
	}
}

func NewLeaderboard(roomID string, round int, ranked []*domain.Participant) *WSMessage {
	entries := make([]LeaderboardEntry, 0, len(ranked))
	for _, p := range ranked {
		entry := LeaderboardEntry{
			ConnectionID: p.ConnectionID,
			Username:     p.Username,
			Score:        p.Score,
			TypedLength:  p.TypedLength,
			CorrectChars: p.CorrectChars,
			IsCompleted:  p.IsCompleted,
			IsTimeUp:     p.IsTimeUp,
			IsFlagged:    p.IsFlagged,
		}
		if !p.CompletionTime.IsZero() && !p.StartedAt.IsZero() {
			entry.CompletionMs = p.CompletionTime.Sub(p.StartedAt).Milliseconds()
		}
		for _, kind := range p.FlagList() {
			entry.Flags = append(entry.Flags, string(kind))
		}
		entries = append(entries, entry)
	}

	return &WSMessage{
		Type:   TypingLeaderboard,
		RoomID: roomID,
		Data: LeaderboardPayload{
			Round:   round + 1,
			Entries: entries,
		},
	}
}

func NewCompleted(roomID string, p *domain.Participant) *WSMessage {
	var ms int64
	if !p.CompletionTime.IsZero() && !p.StartedAt.IsZero() {
		ms = p.CompletionTime.Sub(p.StartedAt).Milliseconds()
	}
	return &WSMessage{
		Type:   TypingCompleted,
		RoomID: roomID,
		Data: CompletionPayload{
			ConnectionID: p.ConnectionID,
			Username:     p.Username,
			Score:        p.Score,
			CompletionMs: ms,
		},
	}
}

func NewParticipantTimeout(roomID string, p *domain.Participant) *WSMessage {
	return &WSMessage{
		Type:   TypingParticipantTimeout,
		RoomID: roomID,
		Data: MemberPayload{
			ConnectionID: p.ConnectionID,
			Username:     p.Username,
		},
	}
}

func NewTimeUp(roomID string) *WSMessage {
	return &WSMessage{
		Type:   TypingTimeUp,
		RoomID: roomID,
		Data:   struct{}{},
	}
}

func NewError(roomID, code, message string) *WSMessage {
	return &WSMessage{
		Type:   ErrorEvent,
		RoomID: roomID,
		Data: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}
