/*
File Name:  Events.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner

A live WebSocket feed of dispatcher activity, fed by subscribing to the
node's log sink the same way the teacher's Stdout bundler lets multiple
writers subscribe via google/uuid handles (Filter.go).
*/

package statusapi

import (
	"net/http"
)

// wsWriter adapts a *websocket.Conn into an io.Writer so it can subscribe
// to the node's multiWriter log sink.
type wsWriter struct {
	conn interface {
		WriteMessage(messageType int, data []byte) error
	}
}

func (w *wsWriter) Write(p []byte) (n int, err error) {
	const textMessage = 1 // websocket.TextMessage
	if err := w.conn.WriteMessage(textMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// apiEvents upgrades the connection and streams every log line the node
// emits (command received, reply sent, peer added, store accepted or
// rejected) until the client disconnects.
// Request:  GET /status/events (WebSocket)
func (api *Instance) apiEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		api.Node.Filters.LogError("apiEvents", "upgrading websocket: %v\n", err)
		return
	}
	defer conn.Close()

	id := api.Node.Stdout.Subscribe(&wsWriter{conn: conn})
	defer api.Node.Stdout.Unsubscribe(id)

	// Block until the client disconnects; any read error (including a
	// clean close) ends the subscription.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
