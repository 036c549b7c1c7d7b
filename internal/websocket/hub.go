package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/pkg/logger"
)

const (
	// 클라이언트가 보낼 수 있는 최대 메시지 수 (1초당)
	maxMessagesPerSecond = 10

	MessageTypeAlert       = "crm_alert"
	MessageTypeUnreadCount = "unread_count"
	MessageTypePong        = "pong"
)

// ClientMessage 관리자 콘솔에서 받은 메시지
type ClientMessage struct {
	Type string `json:"type"` // ping
}

// Envelope 서버 → 관리자 콘솔 메시지
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Client 관리자 WebSocket 세션
type Client struct {
	Hub           *Hub
	Conn          *Conn
	AdminID       uint
	Send          chan []byte
	MessageCount  int       // 최근 1초간 받은 메시지 수
	LastResetTime time.Time // 마지막 카운터 리셋 시간
	RateMu        sync.Mutex
}

// NewClient creates a session with a buffered outbound queue
func NewClient(hub *Hub, conn *Conn, adminID uint) *Client {
	return &Client{
		Hub:     hub,
		Conn:    conn,
		AdminID: adminID,
		Send:    make(chan []byte, 256),
	}
}

// Hub 관리자 알림 WebSocket 연결 관리자
type Hub struct {
	// AdminID -> 세션 목록 (멀티 디바이스 지원)
	clients map[uint][]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu sync.RWMutex
}

// NewHub Hub 생성
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint][]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan []byte, 1024),
	}
}

// Run Hub 실행, ctx 종료 시 모든 세션을 닫는다
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.AdminID] = append(h.clients[client.AdminID], client)
			sessions := len(h.clients[client.AdminID])
			h.mu.Unlock()
			logger.Info("Admin WebSocket session registered", map[string]interface{}{
				"admin_id":       client.AdminID,
				"total_sessions": sessions,
			})

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			for adminID, clientList := range h.clients {
				for _, client := range clientList {
					select {
					case client.Send <- message:
					default:
						// Send 채널이 막혀있음 - 비동기로 정리
						go h.Unregister(client)
						logger.Warn("Admin send buffer full, disconnecting", map[string]interface{}{
							"admin_id": adminID,
						})
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clientList, ok := h.clients[client.AdminID]
	if !ok {
		return
	}

	newList := make([]*Client, 0, len(clientList))
	found := false
	for _, c := range clientList {
		if c == client {
			found = true
			continue
		}
		newList = append(newList, c)
	}
	if !found {
		return
	}

	if len(newList) == 0 {
		delete(h.clients, client.AdminID)
	} else {
		h.clients[client.AdminID] = newList
	}
	close(client.Send)

	logger.Info("Admin WebSocket session unregistered", map[string]interface{}{
		"admin_id":           client.AdminID,
		"remaining_sessions": len(newList),
	})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for adminID, clientList := range h.clients {
		for _, client := range clientList {
			close(client.Send)
		}
		delete(h.clients, adminID)
	}
}

// Broadcast 모든 관리자 세션에 메시지 전송. 큐가 가득 차면 버린다.
func (h *Hub) Broadcast(messageType string, data interface{}) error {
	payload, err := json.Marshal(Envelope{Type: messageType, Data: data})
	if err != nil {
		logger.Error("Failed to marshal websocket message", err)
		return err
	}

	select {
	case h.broadcast <- payload:
	default:
		logger.Warn("Broadcast channel full, message dropped", map[string]interface{}{
			"type": messageType,
		})
	}
	return nil
}

// NotifyAlert pushes a freshly recorded CRM alert to every connected admin
func (h *Hub) NotifyAlert(alert *model.CRMAlert) {
	if err := h.Broadcast(MessageTypeAlert, alert); err != nil {
		logger.Error("Failed to push CRM alert", err, map[string]interface{}{
			"alert_id": alert.ID,
		})
	}
}

// Register 클라이언트 등록
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 클라이언트 등록 해제
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// OnlineAdmins 접속 중인 관리자 수
func (h *Hub) OnlineAdmins() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleClientMessage 클라이언트 메시지 처리
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	client.RateMu.Lock()
	now := time.Now()
	if now.Sub(client.LastResetTime) >= time.Second {
		client.MessageCount = 0
		client.LastResetTime = now
	}
	client.MessageCount++
	count := client.MessageCount
	client.RateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"admin_id": client.AdminID,
			"count":    count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"admin_id": client.AdminID,
			"error":    err.Error(),
		})
		return
	}

	if msg.Type == "ping" {
		payload, _ := json.Marshal(Envelope{Type: MessageTypePong})
		select {
		case client.Send <- payload:
		default:
		}
	}
}
