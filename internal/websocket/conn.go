package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/smartshop/smartshop-backend/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // pongWait보다 짧아야 함
	maxMessageSize = 4 * 1024            // 콘솔은 ping만 보낸다
)

// Conn WebSocket 연결 래퍼
type Conn struct {
	*websocket.Conn
}

// writeFrame writes one frame under a fresh write deadline
func (c *Conn) writeFrame(messageType int, payload []byte) error {
	if err := c.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.WriteMessage(messageType, payload)
}

// ReadPump consumes console messages until the peer goes away, then unregisters the session
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Admin alert stream closed unexpectedly", map[string]interface{}{
					"admin_id": c.AdminID,
					"error":    err.Error(),
				})
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.Hub.HandleClientMessage(c, message)
	}
}

// WritePump forwards hub messages and keepalive pings; exits when Send is closed
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				// Hub가 세션을 정리함
				c.Conn.writeFrame(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.writeFrame(websocket.TextMessage, message); err != nil {
				logger.Warn("Failed to push to admin console", map[string]interface{}{
					"admin_id": c.AdminID,
					"error":    err.Error(),
				})
				return
			}

		case <-ticker.C:
			if err := c.Conn.writeFrame(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
