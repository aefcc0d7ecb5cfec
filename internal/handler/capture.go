package handler

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"

	"github.com/fieldpunch/api/internal/model"
	"github.com/fieldpunch/api/internal/service"
	ws "github.com/fieldpunch/api/internal/websocket"
)

type CaptureHandler struct {
	capture *service.CaptureService
	hub     *ws.Hub
}

func NewCaptureHandler(capture *service.CaptureService, hub *ws.Hub) *CaptureHandler {
	return &CaptureHandler{
		capture: capture,
		hub:     hub,
	}
}

// HandleSocket runs one capture connection. Binary frames carry raw audio
// for the active session; text frames are JSON control messages. Transcript,
// draft and error feedback flows back through the hub, so the socket is
// registered as a hub client for its lifetime.
func (h *CaptureHandler) HandleSocket(c *websocket.Conn, userID string) {
	client := &ws.Client{
		UserID: userID,
		Conn:   c,
		Send:   make(chan []byte, 256),
	}

	h.hub.Register(client)
	defer h.hub.Unregister(client)

	go func() {
		for message := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		}
		c.WriteMessage(websocket.CloseMessage, []byte{})
	}()

	// If the socket drops without a stop, the session is aborted rather
	// than finalized: there is no way to tell a crash from a cancel.
	stopped := false
	defer func() {
		if !stopped {
			h.capture.Discard(userID)
		}
	}()

	for {
		mt, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Capture socket error for user %s: %v", userID, err)
			}
			return
		}

		if mt == websocket.BinaryMessage {
			if err := h.capture.PushAudio(userID, message); err != nil {
				// Audio without a session is dropped, not fatal.
				continue
			}
			continue
		}

		var ctrl model.WSCaptureControl
		if err := json.Unmarshal(message, &ctrl); err != nil {
			continue
		}

		switch ctrl.Type {
		case "start":
			stopped = false
			if err := h.capture.Start(context.Background(), userID); err != nil {
				// The service already surfaced the failure to the client.
				log.Printf("Failed to start capture for user %s: %v", userID, err)
			}

		case "stop":
			stopped = true
			h.capture.Stop(userID)

		case "cancel":
			stopped = true
			h.capture.Discard(userID)

		case "error":
			stopped = true
			h.capture.ReportClientError(userID, ctrl.Reason)

		case "ping":
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			select {
			case client.Send <- pong:
			default:
			}
		}
	}
}
