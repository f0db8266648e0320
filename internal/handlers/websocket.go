package handlers

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"crash-casino-backend/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes the live round feed to connected players. It
// implements services.Broadcaster so the round engine stays decoupled from
// the transport.
type WebSocketHandler struct {
	hub    *WebSocketHub
	logger *log.Logger
}

type WebSocketHub struct {
	clients    map[int64]*websocket.Conn
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	logger     *log.Logger
}

type Client struct {
	UserID int64
	Conn   *websocket.Conn
}

type Message struct {
	Type   string      `json:"type"`
	UserID int64       `json:"user_id,omitempty"`
	Data   interface{} `json:"data"`
}

func NewWebSocketHandler(logger *log.Logger) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:    make(map[int64]*websocket.Conn),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		logger:     logger.WithPrefix("ws"),
	}

	go hub.run()

	return &WebSocketHandler{
		hub:    hub,
		logger: logger.WithPrefix("ws"),
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetInt64("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade to websocket", "error", err)
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
	}

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("websocket read error", "user", userID, "error", err)
			}
			break
		}

		if msg.Type == "PING" {
			client.Conn.WriteJSON(Message{
				Type: "PONG",
				Data: gin.H{"timestamp": time.Now().Unix()},
			})
		}
	}
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client.UserID] = client.Conn
			hub.logger.Info("client registered", "user", client.UserID)

		case client := <-hub.unregister:
			if _, ok := hub.clients[client.UserID]; ok {
				delete(hub.clients, client.UserID)
				hub.logger.Info("client unregistered", "user", client.UserID)
			}

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)
		}
	}
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	if message.UserID != 0 {
		if conn, ok := hub.clients[message.UserID]; ok {
			conn.WriteJSON(message)
		}
		return
	}
	for _, conn := range hub.clients {
		conn.WriteJSON(message)
	}
}

func (h *WebSocketHandler) send(msg *Message) {
	select {
	case h.hub.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "type", msg.Type)
	}
}

func (h *WebSocketHandler) BroadcastRoundWaiting(round *models.Round) {
	h.send(&Message{
		Type: "ROUND_WAITING",
		Data: gin.H{
			"round_id":         round.ID,
			"round_number":     round.Number,
			"commitment_hash":  round.CommitmentHash,
			"betting_deadline": round.BettingDeadline.Unix(),
		},
	})
}

func (h *WebSocketHandler) BroadcastRoundRunning(round *models.Round) {
	h.send(&Message{
		Type: "ROUND_RUNNING",
		Data: gin.H{
			"round_id":   round.ID,
			"started_at": round.StartedAt.Unix(),
		},
	})
}

func (h *WebSocketHandler) BroadcastMultiplier(roundID string, multiplier float64) {
	h.send(&Message{
		Type: "MULTIPLIER_TICK",
		Data: gin.H{
			"round_id":   roundID,
			"multiplier": multiplier,
		},
	})
}

func (h *WebSocketHandler) BroadcastRoundCrashed(round *models.Round, serverSeed string) {
	h.send(&Message{
		Type: "ROUND_CRASHED",
		Data: gin.H{
			"round_id":    round.ID,
			"crash_point": round.CrashPoint,
			"server_seed": serverSeed,
			"ended_at":    round.EndedAt.Unix(),
		},
	})
}

func (h *WebSocketHandler) BroadcastBetPlaced(bet *models.Bet) {
	h.send(&Message{
		Type: "BET_PLACED",
		Data: gin.H{
			"round_id": bet.RoundID,
			"bet_id":   bet.ID,
			"amount":   bet.Amount,
		},
	})
}

func (h *WebSocketHandler) BroadcastBetSettled(userID int64, outcome *models.BetOutcome) {
	h.send(&Message{
		Type:   "BET_SETTLED",
		UserID: userID,
		Data:   outcome,
	})
}
