package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"jumpnav/internal/events"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsPongWait   = 60 * time.Second
	wsPingEvery  = 20 * time.Second
	wsWriteLimit = 10 * time.Second
)

type wsMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// JobWSHandler handles /v1/jobs/{id}/ws. The server pushes a snapshot, then
// every job event, and closes the socket after the terminal event.
func (s *Server) JobWSHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ch := s.Planner.Subscribe(id)
	defer s.Planner.Unsubscribe(id, ch)
	job, err := s.Planner.Job(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// The read loop only services control frames and notices the client leaving.
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(msg wsMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteLimit))
		return conn.WriteJSON(msg)
	}
	closeNormally := func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
			time.Now().Add(wsWriteLimit))
	}

	if err := write(wsMessage{Type: "job.snapshot", Data: map[string]any{"job": job}}); err != nil {
		return
	}
	if job.Status.Finished() {
		closeNormally()
		return
	}

	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(toWS(evt)); err != nil {
				return
			}
			if terminal(evt.Type) {
				closeNormally()
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteLimit)); err != nil {
				return
			}
		}
	}
}

func toWS(evt events.Event) wsMessage { return wsMessage{Type: evt.Type, Data: evt.Data} }
