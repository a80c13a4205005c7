package www

import (
	"crypto/rand"
	"net/http"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

// Admin access rides a signed session cookie. The shop-floor surface
// (status, scanning, history) needs no login; only bypass and config
// mutation sit behind it.
const sessionCookie = "doseedge_session"

const sessionMaxAge = 7 * 24 * 60 * 60 // one week

type sessionStore struct {
	cookies *sessions.CookieStore
}

// newSessionStore builds the cookie store from the configured secret.
// Without one (fresh install) a random key is used, which invalidates
// admin logins on restart until a secret is configured.
func newSessionStore(secret string) *sessionStore {
	key := []byte(secret)
	if len(key) < 32 {
		key = make([]byte, 32)
		rand.Read(key)
	}
	cs := sessions.NewCookieStore(key)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &sessionStore{cookies: cs}
}

func (s *sessionStore) getUser(r *http.Request) (string, bool) {
	sess, _ := s.cookies.Get(r, sessionCookie)
	username, ok := sess.Values["username"].(string)
	return username, ok
}

func (s *sessionStore) setUser(w http.ResponseWriter, r *http.Request, username string) {
	sess, _ := s.cookies.Get(r, sessionCookie)
	sess.Values["username"] = username
	sess.Save(r, w)
}

func (s *sessionStore) clear(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.cookies.Get(r, sessionCookie)
	delete(sess.Values, "username")
	sess.Options.MaxAge = -1
	sess.Save(r, w)
}

func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}
