package domain

import "time"

// VoiceParticipant marks a connection that has opted into peer-to-peer voice
// within a room. The entry exists only while voice is enabled.
type VoiceParticipant struct {
	ConnectionID string    `json:"connectionId"`
	Username     string    `json:"username"`
	JoinedAt     time.Time `json:"joinedAt"`
}

func NewVoiceParticipant(connectionID, username string) *VoiceParticipant {
	return &VoiceParticipant{
		ConnectionID: connectionID,
		Username:     username,
		JoinedAt:     time.Now().UTC(),
	}
}
