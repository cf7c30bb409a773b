package handlers

import (
	"bufio"
	"encoding/json"
	"time"

	"face-match-system/broadcast"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var connectedEvent, _ = json.Marshal(broadcast.Event{Type: broadcast.EventConnected})

// SetupEventRoutes exposes the broadcast stream over WebSocket (/ws) and SSE (/api/events).
func SetupEventRoutes(app *fiber.App, hub *broadcast.Hub, keepalive time.Duration, logger *zap.Logger) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		obs := broadcast.NewWSObserver(conn)
		_ = obs.Send(connectedEvent)
		id := hub.Add(obs)
		defer hub.Remove(id)
		logger.Debug("websocket observer connected", zap.Uint64("observer", id))

		written := make(chan struct{})
		go func() {
			defer close(written)
			if err := obs.Run(); err != nil {
				logger.Debug("websocket write failed", zap.Uint64("observer", id), zap.Error(err))
				// unblocks the read loop below
				_ = obs.Close()
			}
		}()

		// Inbound messages are ignored; the loop only detects the peer going away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logger.Debug("websocket observer gone", zap.Uint64("observer", id), zap.Error(err))
				break
			}
		}
		obs.MarkClosed()
		<-written
	}))

	app.Get("/api/events", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		obs := broadcast.NewSSEObserver()
		if err := obs.Send(connectedEvent); err != nil {
			return err
		}
		id := hub.Add(obs)

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer hub.Remove(id)
			if err := obs.Stream(w, keepalive); err != nil {
				logger.Debug("sse observer gone", zap.Uint64("observer", id), zap.Error(err))
			}
		})
		return nil
	})
}
