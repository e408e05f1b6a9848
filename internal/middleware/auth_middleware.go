package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
)

// SessionMiddleware binds the request to the chat session stored in the
// cookie. Requests without a valid session never reach the handler.
func SessionMiddleware(store *sessions.CookieStore, next func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := store.Get(r, "chat-session")

		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		token, ok1 := session.Values["session-token"].(string)
		name, ok2 := session.Values["display-name"].(string)

		if !(ok1 && ok2) {
			http.Error(w, "Not joined", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "session-token", token)
		ctx = context.WithValue(ctx, "display-name", name)
		r = r.WithContext(ctx)

		next(w, r)
	}
}
