package utils

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const CookieNameConnectionID = "connection_id"

// EnsureConnectionID returns the caller's stable connection identity,
// minting one when the cookie is absent. The same id across reconnects is
// what lets a typing participant re-attach without losing state.
func EnsureConnectionID(w http.ResponseWriter, r *http.Request) string {
	if id := GetConnectionIDFromCookie(r); id != "" {
		return id
	}
	newID := uuid.New().String()
	SetPersistentConnectionIDCookie(newID, w)
	return newID
}

func GetConnectionIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(CookieNameConnectionID)
	if err != nil {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}
	return string(decoded)
}

func SetPersistentConnectionIDCookie(connectionID string, w http.ResponseWriter) {
	expires := time.Now().Add(30 * 24 * time.Hour)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieNameConnectionID,
		Value:    base64.StdEncoding.EncodeToString([]byte(connectionID)),
		Path:     "/",
		HttpOnly: true,
		Expires:  expires,
		SameSite: http.SameSiteLaxMode,
		Secure:   true,
	})
}
