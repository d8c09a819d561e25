package demo

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/botrix/backend/internal/service/dispatch"
	"github.com/zhouzirui/botrix/backend/pkg/utils"
)

// Responder 生成演示机器人的回复
type Responder interface {
	Reply(ctx context.Context, sessionID, query string) string
}

// Handler 演示 webhook，与外部自动化平台收发同样的 JSON 信封
type Handler struct {
	responder Responder
}

// New 创建演示 webhook 处理器
func New(responder Responder) *Handler {
	return &Handler{responder: responder}
}

// RegisterRoutes 注册演示相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/demo/webhook", h.handleWebhook)
}

// Reply is the body returned to the widget dispatcher.
type Reply struct {
	Output string `json:"output"`
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var env dispatch.Envelope
	if err := utils.DecodeJSON(r, &env); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	query := strings.TrimSpace(env.ChatInput)
	if query == "" {
		query = strings.TrimSpace(env.Message)
	}
	if query == "" {
		utils.RespondError(w, http.StatusBadRequest, "chatInput is required")
		return
	}

	answer := h.responder.Reply(r.Context(), env.SessionID, query)
	zap.S().Debugw("[demo] webhook answered", "session_id", env.SessionID, "action", env.Action)
	utils.RespondJSON(w, http.StatusOK, Reply{Output: answer})
}
