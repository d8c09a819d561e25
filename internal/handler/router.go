package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/botrix/backend/internal/handler/analytics"
	"github.com/zhouzirui/botrix/backend/internal/handler/bot"
	"github.com/zhouzirui/botrix/backend/internal/handler/demo"
	"github.com/zhouzirui/botrix/backend/internal/handler/speech"
	"github.com/zhouzirui/botrix/backend/internal/handler/widget"
	middlewarePkg "github.com/zhouzirui/botrix/backend/internal/middleware"
	"github.com/zhouzirui/botrix/backend/pkg/utils"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps 路由依赖，Recognizer 与 Store 可为空
type Deps struct {
	CORSOrigins []string
	Widgets     widget.Widgets
	Bots        bot.Registry
	Analytics   analytics.Service
	Demo        demo.Responder
	Recognizer  speech.Recognizer
	Store       Pinger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.CORSOrigins))

	widgetHandler := widget.New(deps.Widgets)

	r.Get("/health", healthCheck(deps.Store))
	widgetHandler.RegisterEmbed(r)

	r.Route("/api", func(api chi.Router) {
		widgetHandler.RegisterRoutes(api)
		bot.New(deps.Bots).RegisterRoutes(api)
		analytics.New(deps.Analytics).RegisterRoutes(api)
		demo.New(deps.Demo).RegisterRoutes(api)
		speech.New(deps.Recognizer).RegisterRoutes(api)
	})

	return r
}

func healthCheck(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "store": "unconfigured"}
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				zap.S().Warnw("[health] store ping failed", "error", err)
				status["status"] = "degraded"
				status["store"] = err.Error()
				utils.RespondJSON(w, http.StatusServiceUnavailable, status)
				return
			}
			status["store"] = "ok"
		}
		utils.RespondJSON(w, http.StatusOK, status)
	}
}
