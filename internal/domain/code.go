package domain

import (
	"github.com/jaevor/go-nanoid"
)

const (
	// RoomCodeLength is the length of every room code, in both namespaces.
	RoomCodeLength = 8

	// roomCodeChars omits 0/O/1/I to keep codes unambiguous when read aloud.
	roomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// CodeConflictRetries bounds how many times a caller may regenerate a code
// after a uniqueness collision before giving up.
const CodeConflictRetries = 5

var newRoomCode = mustCodeGenerator()

func mustCodeGenerator() func() string {
	gen, err := nanoid.CustomASCII(roomCodeChars, RoomCodeLength)
	if err != nil {
		panic(err)
	}
	return gen
}

// NewRoomCode returns a fresh 8-character room code. Canvas rooms and typing
// rooms draw from the same generator but enforce uniqueness independently.
func NewRoomCode() string {
	return newRoomCode()
}

// IsValidRoomCode reports whether s could have come out of NewRoomCode.
func IsValidRoomCode(s string) bool {
	if len(s) != RoomCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		found := false
		for j := 0; j < len(roomCodeChars); j++ {
			if s[i] == roomCodeChars[j] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
