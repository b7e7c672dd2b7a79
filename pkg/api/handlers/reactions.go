package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"msgsync/pkg/auth"
	"msgsync/pkg/utils"
)

// toggleReaction handles POST /v1/messages/{id}/reactions. Toggling the same
// emoji twice restores the previous state.
func (a *API) toggleReaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Emoji == "" {
		utils.JSONError(w, http.StatusBadRequest, "emoji required")
		return
	}
	res, err := a.Reactions.Toggle(r.Context(), mux.Vars(r)["id"], auth.UserFromContext(r.Context()), req.Emoji)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, res)
}

// listReactions handles GET /v1/messages/{id}/reactions: per-emoji groups in
// first-reaction order.
func (a *API) listReactions(w http.ResponseWriter, r *http.Request) {
	msgID := mux.Vars(r)["id"]
	if _, err := a.Messages.Get(r.Context(), msgID, auth.UserFromContext(r.Context())); err != nil {
		writeErr(w, err)
		return
	}
	sums, err := a.Reactions.Summarize(r.Context(), msgID)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"reactions": sums})
}

// reactionWho handles GET /v1/messages/{id}/reactions/{emoji}: the resolved
// profiles behind one emoji group.
func (a *API) reactionWho(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := a.Messages.Get(r.Context(), vars["id"], auth.UserFromContext(r.Context())); err != nil {
		writeErr(w, err)
		return
	}
	profiles, err := a.Reactions.Who(r.Context(), vars["id"], vars["emoji"])
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"users": profiles})
}
