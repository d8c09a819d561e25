package widget

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/botrix/backend/internal/service/voice"
	widgetsvc "github.com/zhouzirui/botrix/backend/internal/service/widget"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	// 组件嵌入在任意第三方页面
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AudioMessage 音频消息
type AudioMessage struct {
	AudioData []byte `json:"audioData"`
	IsFinal   bool   `json:"isFinal"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// liveConn serializes writes; gorilla allows one concurrent writer.
type liveConn struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *liveConn) send(msgType string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (c *liveConn) sendError(message string) {
	if err := c.send("error", map[string]string{"message": message}); err != nil {
		zap.S().Debugw("[websocket] write error failed", "session_id", c.sessionID, "error", err)
	}
}

// handleWebSocket 推送组件视图并接收命令
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	inst, err := h.widgets.Get(chi.URLParam(r, "widgetID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("[websocket] upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	live := &liveConn{conn: conn, sessionID: inst.ID()}
	zap.S().Infow("[websocket] new connection", "session_id", inst.ID())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	updates, unsubscribe := inst.Subscribe()
	defer unsubscribe()

	if err := live.send("view", inst.Snapshot()); err != nil {
		return
	}
	go pingLoop(ctx, conn)
	go pushViews(ctx, live, inst, updates)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				zap.S().Infow("[websocket] read error", "session_id", inst.ID(), "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		handleCommand(live, inst, &msg)
	}
}

// pushViews 每次状态变化后发送最新快照；组件关闭时通知客户端并断开
func pushViews(ctx context.Context, live *liveConn, inst *widgetsvc.Instance, updates <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				_ = live.send("closed", nil)
				live.mu.Lock()
				_ = live.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "widget closed"),
					time.Now().Add(writeWait))
				live.mu.Unlock()
				_ = live.conn.Close()
				return
			}
			if err := live.send("view", inst.Snapshot()); err != nil {
				zap.S().Debugw("[websocket] push view failed", "session_id", inst.ID(), "error", err)
				return
			}
		}
	}
}

func handleCommand(live *liveConn, inst *widgetsvc.Instance, msg *inboundMessage) {
	switch msg.Type {
	case "send":
		var payload textPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			live.sendError("invalid send payload")
			return
		}
		var err error
		if payload.Text == "" {
			err = inst.Submit()
		} else {
			err = inst.Send(payload.Text)
		}
		if err != nil {
			live.sendError(err.Error())
		}
	case "input":
		var payload textPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			live.sendError("invalid input payload")
			return
		}
		inst.SetInput(payload.Text)
	case "toggle":
		inst.Toggle()
	case "open":
		inst.Open()
	case "minimize":
		inst.Minimize()
	case "voice":
		inst.ToggleVoice()
	case "audio":
		var audio AudioMessage
		if err := json.Unmarshal(msg.Data, &audio); err != nil {
			live.sendError("invalid audio payload")
			return
		}
		if len(audio.AudioData) > 0 {
			if err := inst.FeedAudio(audio.AudioData); err != nil {
				live.sendError(err.Error())
				return
			}
		}
		// 结束帧只结束进行中的识别
		if audio.IsFinal {
			inst.StopVoice()
		}
	case "voice_error":
		var payload struct {
			Code voice.ErrorCode `json:"code"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Code == "" {
			live.sendError("invalid voice_error payload")
			return
		}
		if err := inst.FailVoice(payload.Code); err != nil {
			live.sendError(err.Error())
		}
	case "ping":
		_ = live.send("pong", nil)
	default:
		live.sendError("unsupported message type: " + msg.Type)
	}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
