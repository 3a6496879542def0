package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"maturity_backend/pkg/logger"
	"maturity_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// 多实例部署时通过该频道转发通知
	contentChannel = "content_channel"

	MessageContentUpdated = "CONTENT_UPDATED"
	MessagePing           = "PING"
	MessagePong           = "PONG"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type HubClient struct {
	Hub     *ContentHub
	Conn    *websocket.Conn
	Send    chan []byte
	Limiter *rate.Limiter
}

func (c *HubClient) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket unexpected close", zap.Error(err))
			}
			break
		}

		if !c.Limiter.Allow() {
			continue
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == MessagePing {
			pong, _ := json.Marshal(WSMessage{Type: MessagePong})
			c.Hub.reply(c, pong)
		}
	}
}

func (c *HubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ContentHub 向所有连接的前端推送内容变更通知。
// 配置了 Redis 时广播经由 Pub/Sub，使每个实例的连接都能收到。
type ContentHub struct {
	mu         sync.RWMutex
	clients    map[*HubClient]struct{}
	broadcast  chan []byte
	register   chan *HubClient
	unregister chan *HubClient
	done       chan struct{}
	Redis      *redis.Client
}

func NewContentHub(rdb *redis.Client) *ContentHub {
	return &ContentHub{
		clients:    make(map[*HubClient]struct{}),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *HubClient),
		unregister: make(chan *HubClient),
		done:       make(chan struct{}),
		Redis:      rdb,
	}
}

func (h *ContentHub) Run(ctx context.Context) {
	if h.Redis != nil {
		pubsub := h.Redis.Subscribe(ctx, contentChannel)
		defer pubsub.Close()
		go func() {
			for msg := range pubsub.Channel() {
				h.deliver([]byte(msg.Payload))
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.Stop()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			monitoring.WSConnections.Inc()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				monitoring.WSConnections.Dec()
			}
			h.mu.Unlock()
		case payload := <-h.broadcast:
			h.deliver(payload)
		}
	}
}

// Broadcast 非阻塞；本地队列已满时丢弃
func (h *ContentHub) Broadcast(ctx context.Context, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Error("Broadcast marshal failed", zap.Error(err))
		return
	}

	if h.Redis != nil {
		err := h.Redis.Publish(ctx, contentChannel, payload).Err()
		if err == nil {
			return
		}
		logger.Log.Warn("Redis publish failed, delivering locally", zap.Error(err))
	}

	select {
	case h.broadcast <- payload:
	default:
		logger.Log.Warn("Broadcast queue full, dropping message", zap.String("type", msg.Type))
	}
}

func (h *ContentHub) deliver(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

// reply 只在连接仍注册时写入，Send 关闭后不会再被写
func (h *ContentHub) reply(client *HubClient, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.Send <- payload:
	default:
	}
}

func (h *ContentHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop 关闭所有连接
func (h *ContentHub) Stop() {
	h.mu.Lock()
	n := len(h.clients)
	for client := range h.clients {
		close(client.Send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	monitoring.WSConnections.Set(0)
	logger.Log.Info("ContentHub stopped", zap.Int("closedConnections", n))
}

func ServeWs(hub *ContentHub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	client := &HubClient{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 64),
		Limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
