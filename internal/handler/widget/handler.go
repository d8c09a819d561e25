package widget

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	botsvc "github.com/zhouzirui/botrix/backend/internal/service/bot"
	"github.com/zhouzirui/botrix/backend/internal/service/voice"
	widgetsvc "github.com/zhouzirui/botrix/backend/internal/service/widget"
	"github.com/zhouzirui/botrix/backend/pkg/utils"
)

// maxAudioChunk 单次上传音频块上限
const maxAudioChunk = 256 << 10

// Widgets 是处理器依赖的组件管理能力
type Widgets interface {
	Mount(ctx context.Context, req widgetsvc.MountRequest) (*widgetsvc.Instance, error)
	Get(id string) (*widgetsvc.Instance, error)
	Unmount(id string) error
}

// Handler 组件 HTTP 处理器
type Handler struct {
	widgets Widgets
}

// New 创建组件处理器
func New(widgets Widgets) *Handler {
	return &Handler{widgets: widgets}
}

// RegisterRoutes 注册组件相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/widgets", func(wr chi.Router) {
		wr.Post("/", h.handleMount)
		wr.Route("/{widgetID}", func(ir chi.Router) {
			ir.Get("/", h.handleView)
			ir.Delete("/", h.handleUnmount)
			ir.Get("/render", h.handleRender)
			ir.Post("/toggle", h.handleToggle)
			ir.Put("/input", h.handleInput)
			ir.Post("/messages", h.handleSend)
			ir.Post("/voice/toggle", h.handleVoiceToggle)
			ir.Post("/voice/audio", h.handleVoiceAudio)
			ir.Post("/voice/error", h.handleVoiceError)
			ir.Get("/ws", h.handleWebSocket)
		})
	})
}

type mountPayload struct {
	BotID string `json:"botId"`
	Open  *bool  `json:"open,omitempty"`
}

func (h *Handler) handleMount(w http.ResponseWriter, r *http.Request) {
	var payload mountPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	open := true
	if payload.Open != nil {
		open = *payload.Open
	}
	inst, err := h.widgets.Mount(r.Context(), widgetsvc.MountRequest{
		BotID:     payload.BotID,
		UserAgent: r.UserAgent(),
		Open:      open,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, inst.Snapshot())
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, inst.Snapshot())
}

func (h *Handler) handleUnmount(w http.ResponseWriter, r *http.Request) {
	if err := h.widgets.Unmount(chi.URLParam(r, "widgetID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterEmbed 注册嵌入脚本指向的页面路由，挂在根路径下
func (h *Handler) RegisterEmbed(r chi.Router) {
	r.Get("/widget/{botID}", h.handleEmbed)
}

// handleEmbed mounts a minimized widget for the page that loaded the embed
// script and returns its launcher.
func (h *Handler) handleEmbed(w http.ResponseWriter, r *http.Request) {
	inst, err := h.widgets.Mount(r.Context(), widgetsvc.MountRequest{
		BotID:     chi.URLParam(r, "botID"),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("X-Botrix-Session", inst.ID())
	writePanel(w, inst)
}

func (h *Handler) handleRender(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	writePanel(w, inst)
}

func writePanel(w http.ResponseWriter, inst *widgetsvc.Instance) {
	var buf bytes.Buffer
	if err := widgetsvc.Render(&buf, inst.Snapshot()); err != nil {
		zap.S().Errorw("[widget] render failed", "session_id", inst.ID(), "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	var payload struct {
		Open *bool `json:"open,omitempty"`
	}
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	switch {
	case payload.Open == nil:
		inst.Toggle()
	case *payload.Open:
		inst.Open()
	default:
		inst.Minimize()
	}
	utils.RespondJSON(w, http.StatusOK, inst.Snapshot())
}

type textPayload struct {
	Text string `json:"text"`
}

func (h *Handler) handleInput(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	var payload textPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	inst.SetInput(payload.Text)
	utils.RespondJSON(w, http.StatusOK, inst.Snapshot())
}

// handleSend 发送消息；body 为空时提交当前输入框内容
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	var payload textPayload
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var err error
	if payload.Text == "" {
		err = inst.Submit()
	} else {
		err = inst.Send(payload.Text)
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, inst.Snapshot())
}

func (h *Handler) handleVoiceToggle(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	inst.ToggleVoice()
	utils.RespondJSON(w, http.StatusOK, inst.Snapshot())
}

func (h *Handler) handleVoiceAudio(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	chunk, err := io.ReadAll(io.LimitReader(r.Body, maxAudioChunk+1))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio")
		return
	}
	if len(chunk) > maxAudioChunk {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "audio chunk too large")
		return
	}
	if err := inst.FeedAudio(chunk); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVoiceError(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	var payload struct {
		Code voice.ErrorCode `json:"code"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil || payload.Code == "" {
		utils.RespondError(w, http.StatusBadRequest, "code is required")
		return
	}
	if err := inst.FailVoice(payload.Code); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, inst.Snapshot())
}

func (h *Handler) instance(w http.ResponseWriter, r *http.Request) (*widgetsvc.Instance, bool) {
	inst, err := h.widgets.Get(chi.URLParam(r, "widgetID"))
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	return inst, true
}

func respondServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.S().Errorw("[widget] request failed", "error", err)
	}
	utils.RespondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, widgetsvc.ErrBotRequired), errors.Is(err, widgetsvc.ErrBlankInput):
		return http.StatusBadRequest
	case errors.Is(err, widgetsvc.ErrWidgetNotFound):
		return http.StatusNotFound
	case errors.Is(err, widgetsvc.ErrBusy), errors.Is(err, voice.ErrNotListening):
		return http.StatusConflict
	case errors.Is(err, widgetsvc.ErrClosed):
		return http.StatusGone
	case errors.Is(err, widgetsvc.ErrNoVoice):
		return http.StatusNotImplemented
	case errors.Is(err, voice.ErrAudioTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, botsvc.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
