package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeRecordEvent MessageType = "record_event"
	MessageTypeError       MessageType = "error"
)

// Record change events pushed to subscribers
const (
	EventAttachmentUploaded = "attachment_uploaded"
	EventAttachmentDeleted  = "attachment_deleted"
	EventBackupCreated      = "backup_created"
	EventBackupRestored     = "backup_restored"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      MessageType  `json:"type"`
	PatientID uint         `json:"patient_id,omitempty"`
	Event     *RecordEvent `json:"event,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// RecordEvent describes a change to a patient's record or to the backup set
type RecordEvent struct {
	Event        string `json:"event"`
	PatientID    uint   `json:"patient_id,omitempty"`
	AttachmentID uint   `json:"attachment_id,omitempty"`
	Filename     string `json:"filename,omitempty"`
	OccurredAt   string `json:"occurred_at"`
}

// NewRecordEvent builds a RecordEvent stamped with the current time.
func NewRecordEvent(event string) *RecordEvent {
	return &RecordEvent{Event: event, OccurredAt: time.Now().UTC().Format(time.RFC3339)}
}

// Hub maintains the set of active clients and routes record-change events.
// Clients subscribe per patient; backup events go to every connected client.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Patient subscriptions: patientID -> set of clients
	subscriptions map[uint]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Subscribe to a patient's record
	subscribe chan *subscriptionRequest

	// Unsubscribe from a patient's record
	unsubscribePatient chan *subscriptionRequest

	// Broadcast to patient subscribers (patientID 0 = all clients)
	broadcast chan *broadcastMessage

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger
	logger *slog.Logger
}

type subscriptionRequest struct {
	client    *Client
	patientID uint
}

type broadcastMessage struct {
	patientID uint
	message   []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:            make(map[*Client]bool),
		subscriptions:      make(map[uint]map[*Client]bool),
		register:           make(chan *Client),
		unregister:         make(chan *Client),
		subscribe:          make(chan *subscriptionRequest),
		unsubscribePatient: make(chan *subscriptionRequest),
		broadcast:          make(chan *broadcastMessage, 256),
		logger:             logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client registered")
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				// Remove from all subscriptions
				for patientID, subscribers := range h.subscriptions {
					delete(subscribers, client)
					if len(subscribers) == 0 {
						delete(h.subscriptions, patientID)
					}
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unregistered")
			}

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.subscriptions[req.patientID] == nil {
				h.subscriptions[req.patientID] = make(map[*Client]bool)
			}
			h.subscriptions[req.patientID][req.client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client subscribed to patient", slog.Uint64("patient_id", uint64(req.patientID)))
			}

		case req := <-h.unsubscribePatient:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.patientID]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.patientID)
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unsubscribed from patient", slog.Uint64("patient_id", uint64(req.patientID)))
			}

		case msg := <-h.broadcast:
			h.mu.RLock()
			if msg.patientID == 0 {
				for client := range h.clients {
					select {
					case client.send <- msg.message:
					default:
						// Client buffer full, skip
					}
				}
			} else {
				subscribers := h.subscriptions[msg.patientID]
				for client := range subscribers {
					select {
					case client.send <- msg.message:
					default:
						// Client buffer full, skip
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe subscribes a client to a patient's record
func (h *Hub) Subscribe(client *Client, patientID uint) {
	h.subscribe <- &subscriptionRequest{client: client, patientID: patientID}
}

// Unsubscribe unsubscribes a client from a patient's record
func (h *Hub) Unsubscribe(client *Client, patientID uint) {
	h.unsubscribePatient <- &subscriptionRequest{client: client, patientID: patientID}
}

// BroadcastPatientEvent notifies a patient's subscribers of a record change
func (h *Hub) BroadcastPatientEvent(patientID uint, event *RecordEvent) {
	event.PatientID = patientID
	h.send(patientID, event)
}

// BroadcastGlobalEvent notifies every connected client, used for backup
// lifecycle events that affect all records at once
func (h *Hub) BroadcastGlobalEvent(event *RecordEvent) {
	h.send(0, event)
}

func (h *Hub) send(patientID uint, event *RecordEvent) {
	msg := WSMessage{
		Type:      MessageTypeRecordEvent,
		PatientID: patientID,
		Event:     event,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		}
		return
	}

	h.broadcast <- &broadcastMessage{
		patientID: patientID,
		message:   data,
	}
}
