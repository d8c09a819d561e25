package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	botmodel "github.com/zhouzirui/botrix/backend/internal/model/bot"
	botsvc "github.com/zhouzirui/botrix/backend/internal/service/bot"
	"github.com/zhouzirui/botrix/backend/pkg/utils"
)

// Registry 抽象机器人配置存取，便于测试替换
type Registry interface {
	Create(ctx context.Context, cfg botmodel.BotConfig) (botmodel.BotConfig, error)
	Update(ctx context.Context, id string, cfg botmodel.BotConfig) (botmodel.BotConfig, error)
	Get(ctx context.Context, id string) (botmodel.BotConfig, error)
	List(ctx context.Context, ownerID string) ([]botmodel.BotConfig, error)
	Delete(ctx context.Context, id string) error
}

// Handler 机器人配置的HTTP处理器
type Handler struct {
	bots Registry
}

// New 创建机器人处理器
func New(bots Registry) *Handler {
	return &Handler{bots: bots}
}

// RegisterRoutes 注册机器人相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/bots", func(br chi.Router) {
		br.Get("/", h.handleList)
		br.Post("/", h.handleCreate)
		br.Get("/{botID}", h.handleGet)
		br.Put("/{botID}", h.handleUpdate)
		br.Delete("/{botID}", h.handleDelete)
		br.Get("/{botID}/theme", h.handleTheme)
		br.Get("/{botID}/embed", h.handleEmbed)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	bots, err := h.bots.List(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if bots == nil {
		bots = []botmodel.BotConfig{}
	}
	utils.RespondJSON(w, http.StatusOK, bots)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var cfg botmodel.BotConfig
	if err := utils.DecodeJSON(r, &cfg); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := h.bots.Create(r.Context(), cfg)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.bots.Get(r.Context(), chi.URLParam(r, "botID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var cfg botmodel.BotConfig
	if err := utils.DecodeJSON(r, &cfg); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := h.bots.Update(r.Context(), chi.URLParam(r, "botID"), cfg)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.bots.Delete(r.Context(), chi.URLParam(r, "botID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTheme 返回补齐默认值后的主题
func (h *Handler) handleTheme(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.bots.Get(r.Context(), chi.URLParam(r, "botID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, botmodel.ResolveTheme(cfg))
}

// EmbedCode is the snippet a site owner pastes into their page.
type EmbedCode struct {
	BotID     string `json:"botId"`
	WidgetURL string `json:"widgetUrl"`
	Script    string `json:"script"`
}

func (h *Handler) handleEmbed(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.bots.Get(r.Context(), chi.URLParam(r, "botID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	widgetURL := fmt.Sprintf("%s/widget/%s", origin(r), cfg.ID)
	utils.RespondJSON(w, http.StatusOK, EmbedCode{
		BotID:     cfg.ID,
		WidgetURL: widgetURL,
		Script:    fmt.Sprintf(`<script src="%s"></script>`, widgetURL),
	})
}

func origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, botsvc.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, botsvc.ErrNameRequired), errors.Is(err, botsvc.ErrInvalidWebhook):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		zap.S().Errorw("[bot] request failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
