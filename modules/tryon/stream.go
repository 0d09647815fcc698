package tryon

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// CORS 와 동일하게 모든 origin 허용
		return true
	},
}

// Client - 세션 이벤트를 받는 websocket 연결
type Client struct {
	conn        *websocket.Conn
	session     *Session
	events      <-chan Event
	unsubscribe func()
}

// HandleWebSocket - /ws?session={id} 연결 시 상태 이벤트 스트리밍
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionId := r.URL.Query().Get("session")
	if sessionId == "" {
		writeError(w, http.StatusBadRequest, "Missing session parameter", nil)
		return
	}

	session, ok := h.manager.Get(sessionId)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found", nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	events, unsubscribe := session.Subscribe(sendBuffer)
	client := &Client{
		conn:        conn,
		session:     session,
		events:      events,
		unsubscribe: unsubscribe,
	}
	h.manager.RecordConnection()

	log.Printf("🔍 New WebSocket connection - Session: %s (Subscribers: %d)", sessionId, session.SubscriberCount())

	// 연결 직후 현재 상태 전송
	snap := session.Snapshot()
	if err := client.writeEvent(Event{
		Type:          EventState,
		SessionID:     sessionId,
		Status:        snap.Status,
		StatusMessage: snap.StatusMessage,
		Snapshot:      &snap,
	}); err != nil {
		log.Printf("WebSocket write error: %v", err)
		unsubscribe()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump - 클라이언트 메시지는 무시하고 연결 종료만 감지
func (c *Client) readPump() {
	defer func() {
		c.unsubscribe()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

// writePump - 세션 이벤트를 클라이언트로 쓰기
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeEvent(event); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
