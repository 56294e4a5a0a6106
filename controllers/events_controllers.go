package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yaokouame/pos-payments/events"
	"github.com/yaokouame/pos-payments/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // le CORS est gere en amont par le middleware
	},
}

// HandleEventStream upgrade la connexion et abonne le dashboard aux
// evenements de son tenant. La connexion vit jusqu'a la fermeture cote client.
func HandleEventStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	tenant := businessID(c)
	events.RegisterClient(conn, tenant)
	utils.InfoLogger.Printf("Dashboard connected for business %d", tenant)

	go func() {
		defer events.UnregisterClient(conn)
		for {
			// le flux est unidirectionnel, on ne lit que pour detecter la
			// fermeture et les pings
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
