// Package handlers exposes the engine's operations over HTTP and WebSocket.
// Handlers stay thin: decode, call the service, map errors to status codes.
package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"msgsync/pkg/delivery"
	"msgsync/pkg/fanout"
	"msgsync/pkg/messages"
	"msgsync/pkg/presence"
	"msgsync/pkg/reactions"
	"msgsync/pkg/threads"
)

// API bundles the services the handlers call into.
type API struct {
	Threads   *threads.Store
	Messages  *messages.Log
	Delivery  *delivery.Tracker
	Reactions *reactions.Index
	Presence  *presence.Tracker
	Hub       *fanout.Hub
}

// Register mounts all routes on the router.
func (a *API) Register(r *mux.Router) {
	// threads
	r.HandleFunc("/threads/direct", a.getOrCreateDirect).Methods(http.MethodPost)
	r.HandleFunc("/threads", a.createGroup).Methods(http.MethodPost)
	r.HandleFunc("/threads", a.listThreads).Methods(http.MethodGet)
	r.HandleFunc("/threads/{id}", a.getThread).Methods(http.MethodGet)

	// messages
	r.HandleFunc("/threads/{id}/messages", a.appendMessage).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id}/messages", a.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", a.getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", a.editMessage).Methods(http.MethodPut)
	r.HandleFunc("/messages/{id}", a.deleteMessage).Methods(http.MethodDelete)

	// delivery / read state
	r.HandleFunc("/threads/{id}/delivered", a.markDelivered).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id}/read", a.markRead).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id}/unread", a.unreadCount).Methods(http.MethodGet)
	r.HandleFunc("/threads/{id}/messages/{msgID}/receipts", a.messageReceipts).Methods(http.MethodGet)

	// reactions
	r.HandleFunc("/messages/{id}/reactions", a.toggleReaction).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/reactions", a.listReactions).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}/reactions/{emoji}", a.reactionWho).Methods(http.MethodGet)

	// typing / presence
	r.HandleFunc("/threads/{id}/typing", a.startTyping).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id}/typing", a.stopTyping).Methods(http.MethodDelete)
	r.HandleFunc("/threads/{id}/typing", a.typingIndicator).Methods(http.MethodGet)
	r.HandleFunc("/presence/{user}", a.userPresence).Methods(http.MethodGet)

	// realtime stream
	r.HandleFunc("/ws", a.subscribe).Methods(http.MethodGet)
}
