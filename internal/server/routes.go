// Package server wires HTTP handlers into a router for the Relaycast
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures and returns a router with the relay's routes: the
// health check and the WebSocket endpoint. Peripheral collaborators (such as
// the speech proxy) register their own routes on the returned router.
func SetupRoutes(handler *RelayHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", handler.HandleWebSocket).Methods(http.MethodGet)
	return r
}
