/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for upgrading the HTTP
connection to WebSocket and starting the client's read and write loops. Upgrade requests are
rate limited by the router before they get here. Authentication happens afterwards, through the
LOGIN action on the open connection.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"chatcoord/internal/app/chat"
	"chatcoord/internal/pkg/limiter"
	"chatcoord/internal/pkg/logx"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(manager *chat.Manager, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := manager.NewClient(conn, limiter.ClientIP(r))
		logx.AnnotateConn(r.Context(), client.ID())

		go client.WritePump()

		logx.Info("WebSocket connection established", "conn_id", client.ID())

		client.ReadPump()

		logx.AnnotateIdentity(r.Context(), client.LastIdentity())
	}
}
