package ws

// Inbound event types.
const (
	RoomJoin  = "room.join"
	RoomLeave = "room.leave"

	DrawStroke = "draw.stroke"
	DrawShape  = "draw.shape"
	DrawArrow  = "draw.arrow"
	DrawClear  = "draw.clear"

	VoiceJoin      = "voice.join"
	VoiceLeave     = "voice.leave"
	VoiceOffer     = "voice.offer"
	VoiceAnswer    = "voice.answer"
	VoiceCandidate = "voice.candidate"

	TypingJoin   = "typing.join"
	TypingUpdate = "typing.update"
	TypingLeave  = "typing.leave"

	TypingVoiceJoin      = "typing.voice.join"
	TypingVoiceLeave     = "typing.voice.leave"
	TypingVoiceOffer     = "typing.voice.offer"
	TypingVoiceAnswer    = "typing.voice.answer"
	TypingVoiceCandidate = "typing.voice.candidate"
)

// Outbound event types.
const (
	MemberJoined = "member.joined"
	MemberLeft   = "member.left"
	MemberList   = "member.list"
	RoomUpdate   = "room.update"

	VoicePeers      = "voice.peers"
	VoicePeerJoined = "voice.peer_joined"
	VoicePeerLeft   = "voice.peer_left"

	TypingPrompt             = "typing.prompt"
	TypingLeaderboard        = "typing.leaderboard"
	TypingCompleted          = "typing.completed"
	TypingTimeUp             = "typing.timeup"
	TypingParticipantTimeout = "typing.participant_timeout"
	TypingRound              = "typing.round"

	ErrorEvent = "error"
)

// IsDrawEvent reports whether the event type carries a canvas payload
// relayed verbatim.
func IsDrawEvent(eventType string) bool {
	switch eventType {
	case DrawStroke, DrawShape, DrawArrow, DrawClear:
		return true
	}
	return false
}

// IsVoiceSignal reports whether the event type carries an opaque
// signaling payload addressed to a single peer.
func IsVoiceSignal(eventType string) bool {
	switch eventType {
	case VoiceOffer, VoiceAnswer, VoiceCandidate,
		TypingVoiceOffer, TypingVoiceAnswer, TypingVoiceCandidate:
		return true
	}
	return false
}
