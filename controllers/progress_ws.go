package controllers

import (
	ws "meetclub_go/services/websocket"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

type WebSocketController struct {
	hub *ws.Hub
}

func NewWebSocketController(hub *ws.Hub) *WebSocketController {
	return &WebSocketController{hub: hub}
}

// GetWebSocketStats returns connection counts for the progress hub
func (wc *WebSocketController) GetWebSocketStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"connected_clients": wc.hub.GetClientCount(),
	})
}

// WebSocketHandler upgrades the connection and attaches it to the hub
func (wc *WebSocketController) WebSocketHandler() fiber.Handler {
	return fiberws.New(func(c *fiberws.Conn) {
		wc.hub.ServeFiberWS(c)
	})
}
