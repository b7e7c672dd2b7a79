package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"msgsync/pkg/auth"
	"msgsync/pkg/logger"
	"msgsync/pkg/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the gateway terminates browser origins; engine-to-engine and mobile
	// clients carry no Origin header at all
	CheckOrigin: func(*http.Request) bool { return true },
}

// clientSignal is the inbound frame: clients only send typing state over the
// socket, everything else goes through the REST surface.
type clientSignal struct {
	Type string `json:"type"` // typing_start | typing_stop
}

// subscribe handles GET /v1/ws?thread=<id>&since=<cursor>. It replays the
// thread's committed events after the cursor, then streams live ones. Each
// frame carries seq; clients persist the last seq and pass it as since on
// reconnect.
func (a *API) subscribe(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("thread")
	if threadID == "" {
		utils.JSONError(w, http.StatusBadRequest, "thread query parameter required")
		return
	}
	var since uint64
	if s := r.URL.Query().Get("since"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid since cursor")
			return
		}
		since = v
	}
	user := auth.UserFromContext(r.Context())
	if _, err := a.Threads.Get(threadID, user); err != nil {
		writeErr(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("ws_upgrade_failed", zap.String("thread", threadID), zap.Error(err))
		return
	}

	a.Presence.Connected(user)
	sub := a.Hub.Subscribe(r.Context(), threadID, since)
	defer func() {
		sub.Close()
		a.Presence.Disconnected(user)
		a.Presence.StopTyping(threadID, user)
		_ = conn.Close()
	}()
	logger.Log.Info("ws_subscribed",
		zap.String("thread", threadID), zap.String("user", user), zap.Uint64("since", since))

	// read pump: typing signals in, liveness out
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var sig clientSignal
			if err := json.Unmarshal(data, &sig); err != nil {
				continue
			}
			switch sig.Type {
			case "typing_start":
				a.Presence.StartTyping(threadID, user)
			case "typing_stop":
				a.Presence.StopTyping(threadID, user)
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				logger.Log.Debug("ws_write_failed", zap.String("thread", threadID), zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
