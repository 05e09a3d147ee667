package typing

// createTypingRoomRequest carries optional custom prompts for the race
type createTypingRoomRequest struct {
	Prompts []string `json:"prompts,omitempty"`
}
