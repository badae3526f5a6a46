package server

import (
	"crypto/subtle"
	"net/http"
	"time"
)

const (
	tokenCookieName = "abr_token"
	defaultTokenTTL = 24 * time.Hour
)

func (s *Server) validToken(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.token)) == 1
}

// authMiddleware admits requests carrying the dashboard token. A token in
// the query string is exchanged for a cookie that lives for the server's
// token lifetime, and the request is redirected to the same URL without it.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if queryToken := r.URL.Query().Get("token"); queryToken != "" {
			if !s.validToken(queryToken) {
				s.rejectToken(w, r, "query")
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     tokenCookieName,
				Value:    s.token,
				Path:     "/",
				HttpOnly: true,
				MaxAge:   int(s.tokenTTL / time.Second),
				SameSite: http.SameSiteLaxMode,
			})

			clean := *r.URL
			q := clean.Query()
			q.Del("token")
			clean.RawQuery = q.Encode()
			http.Redirect(w, r, clean.String(), http.StatusFound)
			return
		}

		cookie, err := r.Cookie(tokenCookieName)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !s.validToken(cookie.Value) {
			s.rejectToken(w, r, "cookie")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rejectToken(w http.ResponseWriter, r *http.Request, source string) {
	s.logger.Warn("rejected dashboard token", "source", source, "path", r.URL.Path, "remote", r.RemoteAddr)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
