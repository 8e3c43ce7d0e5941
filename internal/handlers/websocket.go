package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/interfaces"
	"github.com/ternarybob/lectern/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const writeWait = 10 * time.Second

// WSMessage is the envelope for every message pushed to clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketHandler fans lecture events out to connected clients
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	eventService     interfaces.EventService
	allowedEvents    map[string]bool // Whitelist of events to broadcast (empty = allow all)
	throttle         time.Duration   // Per-lecture interval for non-terminal status updates
	throttlers       map[string]*rate.Limiter
	throttleMu       sync.Mutex
	serverInstanceID string // Unique ID generated on startup - clients use to detect server restart
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		allowedEvents:    make(map[string]bool),
		throttlers:       make(map[string]*rate.Limiter),
		serverInstanceID: uuid.New().String(),
	}

	if config != nil {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[eventType] = true
		}
		if config.Throttle != "" {
			if d, err := time.ParseDuration(config.Throttle); err == nil {
				h.throttle = d
			} else {
				logger.Warn().
					Err(err).
					Str("interval", config.Throttle).
					Msg("Failed to parse websocket throttle interval - throttler disabled")
			}
		}
	}

	if eventService != nil {
		h.SubscribeToLectureEvents()
	}

	logger.Debug().
		Str("server_instance_id", h.serverInstanceID).
		Int("allowed_events", len(h.allowedEvents)).
		Dur("throttle", h.throttle).
		Msg("WebSocket handler initialized")

	return h
}

// HandleWebSocket handles GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	h.send(conn, WSMessage{
		Type: "hello",
		Payload: map[string]string{
			"server_instance_id": h.serverInstanceID,
			"version":            common.GetVersion(),
		},
	})

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client disconnected")
	}()

	// Read messages from client (keep connection alive)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// SubscribeToLectureEvents forwards bus events to the connected clients
func (h *WebSocketHandler) SubscribeToLectureEvents() {
	h.eventService.Subscribe(interfaces.EventLectureStatusChanged, func(ctx context.Context, event interfaces.Event) error {
		report, ok := event.Payload.(models.StatusReport)
		if !ok {
			h.logger.Warn().Msg("Invalid lecture status event payload type")
			return nil
		}
		if !h.allow(report) {
			return nil
		}
		h.Broadcast(WSMessage{Type: string(event.Type), Payload: report})
		return nil
	})

	h.eventService.Subscribe(interfaces.EventChatTurnAppended, func(ctx context.Context, event interfaces.Event) error {
		turn, ok := event.Payload.(*models.ChatTurn)
		if !ok {
			h.logger.Warn().Msg("Invalid chat turn event payload type")
			return nil
		}
		if !h.allowed(string(event.Type)) {
			return nil
		}
		h.Broadcast(WSMessage{
			Type: string(event.Type),
			Payload: map[string]interface{}{
				"lecture_id": turn.LectureID,
				"turn_id":    turn.ID,
				"created_at": turn.CreatedAt,
			},
		})
		return nil
	})

	h.eventService.Subscribe(interfaces.EventLectureDeleted, func(ctx context.Context, event interfaces.Event) error {
		lectureID, _ := event.Payload.(string)
		h.forget(lectureID)
		if !h.allowed(string(event.Type)) {
			return nil
		}
		h.Broadcast(WSMessage{
			Type:    string(event.Type),
			Payload: map[string]string{"lecture_id": lectureID},
		})
		return nil
	})
}

func (h *WebSocketHandler) allowed(eventType string) bool {
	return len(h.allowedEvents) == 0 || h.allowedEvents[eventType]
}

// allow applies the whitelist and the per-lecture throttle. Terminal and
// pending statuses always go through so clients never miss the outcome.
func (h *WebSocketHandler) allow(report models.StatusReport) bool {
	if !h.allowed(string(interfaces.EventLectureStatusChanged)) {
		return false
	}
	if h.throttle <= 0 || report.Status != models.StatusProcessing {
		return true
	}

	h.throttleMu.Lock()
	limiter, ok := h.throttlers[report.LectureID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(h.throttle), 1)
		h.throttlers[report.LectureID] = limiter
	}
	h.throttleMu.Unlock()

	return limiter.Allow()
}

func (h *WebSocketHandler) forget(lectureID string) {
	h.throttleMu.Lock()
	delete(h.throttlers, lectureID)
	h.throttleMu.Unlock()
}

// Broadcast sends msg to every connected client
func (h *WebSocketHandler) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal websocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn, mutex := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, mutex)
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		if err := h.write(conn, mutexes[i], data); err != nil {
			h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send websocket message to client")
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHandler) send(conn *websocket.Conn, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal websocket message")
		return
	}

	h.mu.RLock()
	mutex := h.clients[conn]
	h.mu.RUnlock()
	if mutex == nil {
		return
	}

	if err := h.write(conn, mutex, data); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send websocket message to client")
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, mutex *sync.Mutex, data []byte) error {
	mutex.Lock()
	defer mutex.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
