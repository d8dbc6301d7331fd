package auth

import (
	"net/http"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "picketly_session"

// SetSessionCookie writes the session cookie. It is HttpOnly so page
// scripts cannot read it, SameSite=Lax so it rides along on top-level
// navigations from the confirmation email, and Secure when secure is true
// (production, where the API is served over HTTPS).
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken returns the raw session cookie value, or "" when absent.
func SessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
