/*
File Name:  API.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner

A small read-only HTTP surface for operators, adapted from the teacher's
webapi/API.go router setup. Unlike the teacher's API, this one never
mutates node state: every handler only reads under the locks the Routing
Table and Value Cache already hold.
*/

package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	node "github.com/kadcore/node"
)

// Instance is a running status API bound to one Node.
type Instance struct {
	Node   *node.Node
	Router *mux.Router
}

// wsUpgrader upgrades /status/events connections. It allows all origins,
// matching the teacher's WSUpgrader: this endpoint is read-only and
// carries no credentials.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Start starts the status API listening on listen ("IP:Port"). It returns
// immediately; the HTTP server runs in its own goroutine.
func Start(n *node.Node, listen string) (api *Instance) {
	if listen == "" {
		return nil
	}

	api = &Instance{Node: n, Router: mux.NewRouter()}

	api.Router.HandleFunc("/status", api.apiStatus).Methods("GET")
	api.Router.HandleFunc("/status/routing", api.apiRouting).Methods("GET")
	api.Router.HandleFunc("/status/cache", api.apiCache).Methods("GET")
	api.Router.HandleFunc("/status/events", api.apiEvents).Methods("GET")

	go api.serve(listen)

	return api
}

func (api *Instance) serve(listen string) {
	server := &http.Server{
		Addr:         listen,
		Handler:      api.Router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil {
		api.Node.Filters.LogError("statusapi.serve", "listening on '%s': %v\n", listen, err)
	}
}

func encodeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
