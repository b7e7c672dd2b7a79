package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"msgsync/pkg/auth"
	"msgsync/pkg/models"
	"msgsync/pkg/threads"
	"msgsync/pkg/utils"
)

// getOrCreateDirect handles POST /v1/threads/direct. The body names the peer;
// the caller comes from the identity headers. Repeating the call returns the
// same thread.
func (a *API) getOrCreateDirect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Peer string `json:"peer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Peer == "" {
		utils.JSONError(w, http.StatusBadRequest, "peer required")
		return
	}
	user := auth.UserFromContext(r.Context())
	tenant := auth.TenantFromContext(r.Context())
	th, err := a.Threads.GetOrCreateDirect(r.Context(), tenant, user, req.Peer)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, th)
}

// createGroup handles POST /v1/threads for every non-direct kind.
func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind         string   `json:"kind"`
		Subject      string   `json:"subject"`
		AllowReplies bool     `json:"allow_replies"`
		Participants []string `json:"participants"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	user := auth.UserFromContext(r.Context())
	tenant := auth.TenantFromContext(r.Context())
	th, err := a.Threads.CreateGroup(r.Context(), tenant, models.ThreadKind(req.Kind), user, req.Participants,
		threads.GroupOptions{Subject: req.Subject, AllowReplies: req.AllowReplies})
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusCreated, th)
}

// listThreads handles GET /v1/threads: the caller's inbox, most recent first.
func (a *API) listThreads(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	tenant := auth.TenantFromContext(r.Context())
	out, err := a.Threads.ListForUser(r.Context(), tenant, user)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"threads": out})
}

// getThread handles GET /v1/threads/{id}.
func (a *API) getThread(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	th, err := a.Threads.Get(id, auth.UserFromContext(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, th)
}
