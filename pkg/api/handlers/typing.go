package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"msgsync/pkg/auth"
	"msgsync/pkg/utils"
)

// startTyping handles POST /v1/threads/{id}/typing. Clients repeat the call
// while composing; the signal expires on its own otherwise.
func (a *API) startTyping(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]
	user := auth.UserFromContext(r.Context())
	if _, err := a.Threads.Get(threadID, user); err != nil {
		writeErr(w, err)
		return
	}
	a.Presence.StartTyping(threadID, user)
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "typing"})
}

// stopTyping handles DELETE /v1/threads/{id}/typing.
func (a *API) stopTyping(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]
	user := auth.UserFromContext(r.Context())
	if _, err := a.Threads.Get(threadID, user); err != nil {
		writeErr(w, err)
		return
	}
	a.Presence.StopTyping(threadID, user)
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "idle"})
}

// typingIndicator handles GET /v1/threads/{id}/typing: the aggregated
// indicator line for everyone else currently typing.
func (a *API) typingIndicator(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]
	user := auth.UserFromContext(r.Context())
	tenant := auth.TenantFromContext(r.Context())
	if _, err := a.Threads.Get(threadID, user); err != nil {
		writeErr(w, err)
		return
	}
	line, err := a.Presence.Indicator(r.Context(), tenant, threadID, user)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{
		"typing":    a.Presence.TypingIn(threadID, user),
		"indicator": line,
	})
}

// userPresence handles GET /v1/presence/{user}: online flag plus last-seen
// when offline.
func (a *API) userPresence(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	out := map[string]any{"user": user, "online": a.Presence.Online(user)}
	if ts, ok := a.Presence.LastSeen(user); ok {
		out["last_seen_ts"] = ts
	}
	utils.JSONWrite(w, http.StatusOK, out)
}
