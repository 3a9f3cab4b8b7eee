package chat

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking is the transport's caller's responsibility
	// (e.g. an echo CORS/auth middleware in front of this route).
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterRoutes mounts the WebSocket upgrade endpoint on an existing
// echo instance (cmd/flowengine wires this alongside transport/http's
// board routes rather than running a second listener).
func RegisterRoutes(e *echo.Echo, hub *Hub) {
	e.GET("/api/v1/chat/:board/ws", func(c echo.Context) error {
		username := c.QueryParam("username")
		if username == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "username query parameter is required")
		}
		boardID := c.Param("board")

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}

		client := NewClient(hub, conn, username, boardID)
		hub.register <- client

		go client.writePump()
		go client.readPump()
		return nil
	})
}
