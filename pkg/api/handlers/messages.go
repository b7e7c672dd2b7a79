package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"msgsync/pkg/auth"
	"msgsync/pkg/models"
	"msgsync/pkg/utils"
)

// appendMessage handles POST /v1/threads/{id}/messages.
func (a *API) appendMessage(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]
	var req struct {
		Body          models.Content `json:"body"`
		ReplyTo       string         `json:"reply_to"`
		ForwardedFrom string         `json:"forwarded_from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m, err := a.Messages.Append(r.Context(), threadID, auth.UserFromContext(r.Context()), req.Body, req.ReplyTo, req.ForwardedFrom)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusCreated, m)
}

// listMessages handles GET /v1/threads/{id}/messages?cursor=<k>&limit=<n>.
// The response carries next_cursor; feeding it back resumes the page walk.
func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]
	cursor := r.URL.Query().Get("cursor")
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	msgs, next, err := a.Messages.List(r.Context(), threadID, auth.UserFromContext(r.Context()), cursor, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"messages": msgs, "next_cursor": next})
}

// getMessage handles GET /v1/messages/{id}.
func (a *API) getMessage(w http.ResponseWriter, r *http.Request) {
	m, err := a.Messages.Get(r.Context(), mux.Vars(r)["id"], auth.UserFromContext(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, m)
}

// editMessage handles PUT /v1/messages/{id}; sender-only.
func (a *API) editMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body models.Content `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m, err := a.Messages.Edit(r.Context(), mux.Vars(r)["id"], auth.UserFromContext(r.Context()), req.Body)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, m)
}

// deleteMessage handles DELETE /v1/messages/{id}: a soft delete, the row
// keeps its position.
func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := a.Messages.SoftDelete(r.Context(), mux.Vars(r)["id"], auth.UserFromContext(r.Context())); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "deleted"})
}
