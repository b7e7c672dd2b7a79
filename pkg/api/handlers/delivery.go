package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"msgsync/pkg/auth"
	"msgsync/pkg/delivery"
	"msgsync/pkg/utils"
)

// markDelivered handles POST /v1/threads/{id}/delivered: the caller's client
// fetched the thread content. Idempotent.
func (a *API) markDelivered(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]
	if err := a.Delivery.MarkDelivered(r.Context(), threadID, auth.UserFromContext(r.Context())); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "delivered"})
}

// markRead handles POST /v1/threads/{id}/read: the caller viewed the thread.
// Resets their unread count. Idempotent.
func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]
	if err := a.Delivery.MarkRead(r.Context(), threadID, auth.UserFromContext(r.Context())); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "read"})
}

// unreadCount handles GET /v1/threads/{id}/unread.
func (a *API) unreadCount(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]
	n, err := delivery.UnreadCount(threadID, auth.UserFromContext(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]int{"unread": n})
}

// messageReceipts handles GET /v1/threads/{id}/messages/{msgID}/receipts:
// who has the message delivered and who has read it.
func (a *API) messageReceipts(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := a.Threads.Get(vars["id"], auth.UserFromContext(r.Context())); err != nil {
		writeErr(w, err)
		return
	}
	st, err := a.Delivery.State(vars["id"], vars["msgID"])
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{
		"delivered": st.Delivered,
		"read":      st.Read,
	})
}
