package analytics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/botrix/backend/internal/model/chat"
	analyticssvc "github.com/zhouzirui/botrix/backend/internal/service/analytics"
	"github.com/zhouzirui/botrix/backend/pkg/utils"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 500
	heartbeatInterval   = 15 * time.Second
)

// Service 抽象统计服务，便于测试替换
type Service interface {
	Stats(ctx context.Context) (analyticssvc.Stats, error)
	Latest() analyticssvc.Stats
	Subscribe() (<-chan analyticssvc.Stats, func())
	Sessions(ctx context.Context, limit int) ([]analyticssvc.SessionSummary, error)
	Transcript(ctx context.Context, sessionID string) ([]chat.PersistedMessage, error)
}

// Handler 统计相关的HTTP处理器
type Handler struct {
	svc       Service
	heartbeat time.Duration
}

// New 创建统计处理器
func New(svc Service) *Handler {
	return &Handler{svc: svc, heartbeat: heartbeatInterval}
}

// RegisterRoutes 注册统计相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(ar chi.Router) {
		ar.Get("/stats", h.handleStats)
		ar.Get("/stream", h.handleStream)
		ar.Get("/sessions", h.handleSessions)
		ar.Get("/sessions/{sessionID}/messages", h.handleTranscript)
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		zap.S().Errorw("[analytics] stats failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

// handleStream 以 SSE 推送统计；连接建立时先发送一次当前值
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	updates, cancel := h.svc.Subscribe()
	defer cancel()

	initial := h.svc.Latest()
	if initial.GeneratedAt.IsZero() {
		stats, err := h.svc.Stats(ctx)
		if err != nil {
			zap.S().Errorw("[analytics] stats failed", "error", err)
			utils.RespondError(w, http.StatusInternalServerError, "failed to load stats")
			return
		}
		initial = stats
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEEvent(w, flusher, "stats", initial); err != nil {
		return
	}
	zap.S().Debugw("[sse] analytics stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.S().Debugw("[sse] analytics stream closed")
			return
		case stats := <-updates:
			if err := utils.SendSSEEvent(w, flusher, "stats", stats); err != nil {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSessionLimit)
	}

	sessions, err := h.svc.Sessions(r.Context(), limit)
	if err != nil {
		zap.S().Errorw("[analytics] list sessions failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load sessions")
		return
	}
	if sessions == nil {
		sessions = []analyticssvc.SessionSummary{}
	}
	utils.RespondJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.Transcript(r.Context(), chi.URLParam(r, "sessionID"))
	if errors.Is(err, analyticssvc.ErrSessionRequired) {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		zap.S().Errorw("[analytics] load transcript failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []chat.PersistedMessage{}
	}
	utils.RespondJSON(w, http.StatusOK, msgs)
}
