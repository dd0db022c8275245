package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/qianlnk/werewolf-session/models"
)

// 推送消息类型
const (
	EventSessionUpdated = "session_updated"
	EventSessionDeleted = "session_deleted"
	EventChatMessage    = "chat_message"
)

// sendBufferSize 每个连接的发送缓冲，写满即断开该连接
const sendBufferSize = 256

// Event WebSocket消息结构
type Event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Version   int64           `json:"version,omitempty"`
	Phase     models.Phase    `json:"phase,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
}

// client 单个连接；只有 writeLoop 向 conn 写数据
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketManager WebSocket连接管理器
//
// 只推送变更通知和聊天消息，对局状态由客户端通过HTTP拉取。
// 所有发送都只是入队，不会阻塞调用方。
type WebSocketManager struct {
	sessions     map[string]map[string]*client // sessionID -> participantID -> client
	sequences    map[string]int64              // sessionID -> 最后一条聊天序号
	writeTimeout time.Duration
	pingInterval time.Duration
	mutex        sync.Mutex
}

// NewWebSocketManager 创建WebSocket管理器实例
func NewWebSocketManager(writeTimeout, pingInterval time.Duration) *WebSocketManager {
	return &WebSocketManager{
		sessions:     make(map[string]map[string]*client),
		sequences:    make(map[string]int64),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

// RegisterConnection 注册新的WebSocket连接，同一玩家的旧连接会被替换
func (wm *WebSocketManager) RegisterConnection(sessionID, participantID string, conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}

	wm.mutex.Lock()
	members, exists := wm.sessions[sessionID]
	if !exists {
		members = make(map[string]*client)
		wm.sessions[sessionID] = members
	}
	// 关闭旧连接的发送通道，旧的 writeLoop 会关闭连接
	if old := members[participantID]; old != nil {
		close(old.send)
	}
	members[participantID] = c
	wm.mutex.Unlock()

	log.Printf("[ws] 玩家 %s 连接到对局 %s", participantID, sessionID)

	go wm.writeLoop(sessionID, participantID, c)
	go wm.readLoop(sessionID, participantID, c)
}

// removeConnection 移除WebSocket连接，c 已被替换时不做任何事
func (wm *WebSocketManager) removeConnection(sessionID, participantID string, c *client) {
	wm.mutex.Lock()
	removed := wm.detachLocked(sessionID, participantID, c)
	wm.mutex.Unlock()

	if removed {
		log.Printf("[ws] 玩家 %s 断开对局 %s", participantID, sessionID)
	}
}

// detachLocked 从注册表删除并关闭发送通道，调用方需持有锁
func (wm *WebSocketManager) detachLocked(sessionID, participantID string, c *client) bool {
	members := wm.sessions[sessionID]
	if members == nil || members[participantID] != c {
		return false
	}
	delete(members, participantID)
	if len(members) == 0 {
		delete(wm.sessions, sessionID)
	}
	close(c.send)
	return true
}

// ConnectionCount 对局当前的连接数
func (wm *WebSocketManager) ConnectionCount(sessionID string) int {
	wm.mutex.Lock()
	defer wm.mutex.Unlock()
	return len(wm.sessions[sessionID])
}

// BroadcastToSession 向对局内所有连接广播消息
func (wm *WebSocketManager) BroadcastToSession(sessionID string, event Event) int {
	return wm.SendToParticipants(sessionID, nil, event)
}

// SendToParticipants 向指定玩家发送消息，ids 为 nil 时发给所有人；返回入队的连接数
func (wm *WebSocketManager) SendToParticipants(sessionID string, ids []string, event Event) int {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] 序列化 %s 失败: %v", event.Type, err)
		return 0
	}

	wm.mutex.Lock()
	defer wm.mutex.Unlock()
	return wm.enqueueLocked(sessionID, ids, payload)
}

// enqueueLocked 非阻塞入队，缓冲已满的连接直接断开
func (wm *WebSocketManager) enqueueLocked(sessionID string, ids []string, payload []byte) int {
	members := wm.sessions[sessionID]
	if ids == nil {
		ids = make([]string, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
	}

	sent := 0
	for _, id := range ids {
		c, ok := members[id]
		if !ok {
			continue
		}
		select {
		case c.send <- payload:
			sent++
		default:
			// 缓冲已满，客户端跟不上，断开
			log.Printf("[ws] 玩家 %s 发送缓冲已满，断开连接", id)
			wm.detachLocked(sessionID, id, c)
		}
	}
	return sent
}

// SessionChanged 实现 Notifier
func (wm *WebSocketManager) SessionChanged(session *models.Session) {
	wm.BroadcastToSession(session.ID, Event{
		Type:      EventSessionUpdated,
		SessionID: session.ID,
		Version:   session.Version,
		Phase:     session.Phase,
	})
}

// SessionDeleted 实现 Notifier，通知后断开对局的所有连接
func (wm *WebSocketManager) SessionDeleted(sessionID string) {
	payload, err := json.Marshal(Event{Type: EventSessionDeleted, SessionID: sessionID})
	if err != nil {
		log.Printf("[ws] 序列化 %s 失败: %v", EventSessionDeleted, err)
		return
	}

	wm.mutex.Lock()
	defer wm.mutex.Unlock()
	wm.enqueueLocked(sessionID, nil, payload)
	// 通道关闭前已入队的消息仍会被 writeLoop 发出
	for id, c := range wm.sessions[sessionID] {
		wm.detachLocked(sessionID, id, c)
	}
	delete(wm.sequences, sessionID)
}

// Deliver 实现 Messenger；序号按对局递增，分配序号和入队在同一把锁内完成
func (wm *WebSocketManager) Deliver(ctx context.Context, msg models.Message, recipients []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, errors.New("没有接收者")
	}

	wm.mutex.Lock()
	defer wm.mutex.Unlock()

	msg.Order = wm.sequences[msg.SessionID] + 1
	payload, err := json.Marshal(Event{Type: EventChatMessage, SessionID: msg.SessionID, Message: &msg})
	if err != nil {
		return 0, err
	}
	wm.sequences[msg.SessionID] = msg.Order
	wm.enqueueLocked(msg.SessionID, recipients, payload)
	return msg.Order, nil
}

// writeLoop 连接唯一的写协程，同时负责心跳检测
func (wm *WebSocketManager) writeLoop(sessionID, participantID string, c *client) {
	defer c.conn.Close()

	var tick <-chan time.Time
	if wm.pingInterval > 0 {
		ticker := time.NewTicker(wm.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	failures := 0
	const maxFailures = 3
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wm.writeTimeout))
			if !ok {
				// 连接已被移除或替换
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("[ws] 发送给玩家 %s 失败: %v", participantID, err)
				wm.removeConnection(sessionID, participantID, c)
				return
			}
		case <-tick:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wm.writeTimeout)); err != nil {
				failures++
				log.Printf("[ws] 玩家 %s 心跳失败 (%d/%d): %v", participantID, failures, maxFailures, err)
				if failures >= maxFailures {
					wm.removeConnection(sessionID, participantID, c)
					return
				}
				continue
			}
			failures = 0
		}
	}
}

// readLoop 读取客户端数据以处理控制帧，读失败即移除连接
func (wm *WebSocketManager) readLoop(sessionID, participantID string, c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] 读取玩家 %s 失败: %v", participantID, err)
			}
			wm.removeConnection(sessionID, participantID, c)
			return
		}
	}
}
