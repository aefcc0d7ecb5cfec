package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/fieldpunch/api/internal/model"
)

// Client represents one WebSocket connection owned by a user.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans user-scoped events out to every connection the user holds.
type Hub struct {
	// Clients grouped by user ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	UserID  string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]bool)
			}
			h.clients[client.UserID][client] = true
			h.mu.Unlock()
			log.Printf("Client registered for user %s", client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.UserID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Client unregistered for user %s", client.UserID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.UserID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) send(userID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal websocket message: %v", err)
		return
	}
	h.broadcast <- &BroadcastMessage{UserID: userID, Message: data}
}

// TranscriptUpdated publishes the running transcript while a capture
// session is live.
func (h *Hub) TranscriptUpdated(userID, transcript string) {
	h.send(userID, model.WSTranscriptMessage{
		Type:       model.WSMessageTypeTranscript,
		Transcript: transcript,
	})
}

// CaptureError surfaces a capture failure with its user-facing message.
func (h *Hub) CaptureError(userID string, reason model.CaptureErrorReason, message string) {
	h.send(userID, model.WSCaptureErrorMessage{
		Type:    model.WSMessageTypeCaptureError,
		Reason:  reason,
		Message: message,
	})
}

// DraftChanged publishes a full draft snapshot.
func (h *Hub) DraftChanged(userID string, draft model.DraftRecord) {
	h.send(userID, model.WSDraftMessage{
		Type:  model.WSMessageTypeDraft,
		Draft: draft,
	})
}

// JobsChanged publishes a replace-on-change snapshot of the user's jobs.
func (h *Hub) JobsChanged(userID string, jobs []model.Job) {
	h.send(userID, model.WSJobsMessage{
		Type: model.WSMessageTypeJobs,
		Jobs: jobs,
	})
}

// ReportProgress publishes report generation progress.
func (h *Hub) ReportProgress(userID, reportID string, progress int, status model.ReportStatus, step string) {
	h.send(userID, model.WSReportProgressMessage{
		Type:        model.WSMessageTypeReportProgress,
		ReportID:    reportID,
		Progress:    progress,
		Status:      status,
		CurrentStep: step,
	})
}

// ReportComplete announces a finished report.
func (h *Hub) ReportComplete(userID, reportID, fileURL, fileName string) {
	h.send(userID, model.WSReportCompleteMessage{
		Type:     model.WSMessageTypeReportComplete,
		ReportID: reportID,
		FileURL:  fileURL,
		FileName: fileName,
	})
}

// ReportFailed announces a failed report.
func (h *Hub) ReportFailed(userID, reportID, message string) {
	h.send(userID, model.WSReportErrorMessage{
		Type:     model.WSMessageTypeReportError,
		ReportID: reportID,
		Error:    message,
	})
}

// HandleConnection pumps messages for one notification socket until the
// client goes away. Binary frames are ignored on this socket.
func (h *Hub) HandleConnection(c *websocket.Conn, userID string) {
	client := &Client{
		UserID: userID,
		Conn:   c,
		Send:   make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong := model.WSMessage{Type: model.WSMessageTypePong}
			data, _ := json.Marshal(pong)
			client.Send <- data
		}
	}
}
