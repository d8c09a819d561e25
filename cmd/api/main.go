package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/botrix/backend/internal/config"
	"github.com/zhouzirui/botrix/backend/internal/handler"
	speechhandler "github.com/zhouzirui/botrix/backend/internal/handler/speech"
	"github.com/zhouzirui/botrix/backend/internal/logger"
	botmodel "github.com/zhouzirui/botrix/backend/internal/model/bot"
	"github.com/zhouzirui/botrix/backend/internal/pubsub"
	"github.com/zhouzirui/botrix/backend/internal/scheduler"
	"github.com/zhouzirui/botrix/backend/internal/service/ai"
	"github.com/zhouzirui/botrix/backend/internal/service/analytics"
	botsvc "github.com/zhouzirui/botrix/backend/internal/service/bot"
	"github.com/zhouzirui/botrix/backend/internal/service/dispatch"
	"github.com/zhouzirui/botrix/backend/internal/service/session"
	"github.com/zhouzirui/botrix/backend/internal/service/speech"
	"github.com/zhouzirui/botrix/backend/internal/service/widget"
	"github.com/zhouzirui/botrix/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl, restoreLogger, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zl.Sync()
		restoreLogger()
	}()

	if err := run(ctx, cfg); err != nil {
		zap.S().Fatalw("botrix backend stopped", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	repo, err := store.Open(store.Options{
		Driver:      cfg.Store.Driver,
		SQLitePath:  cfg.Store.SQLitePath,
		PostgresDSN: cfg.Store.PostgresDSN,
	})
	if err != nil {
		return err
	}
	defer repo.Close()

	var broker pubsub.Broker
	if cfg.Redis.Enabled() {
		broker, err = pubsub.NewRedisBroker(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.Channel)
		if err != nil {
			return err
		}
		zap.S().Infow("redis event broker connected", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	} else {
		broker = pubsub.NewMemoryBroker()
	}
	defer broker.Close()

	recorder := session.NewRecorder(repo, repo, broker, cfg.Widget.QueueSize)
	defer recorder.Close()

	registry, err := botsvc.NewRegistry(repo)
	if err != nil {
		return err
	}
	defer registry.Close()
	if err := registry.EnsureSeed(ctx, botmodel.Seed(cfg.Widget.DemoWebhookURL)); err != nil {
		return err
	}

	responder, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		zap.S().Warnw("failed to initialize AI model, demo bot answers from the catalogue", "error", err)
		responder = ai.NewEchoService(cfg.AI.HistoryLimit)
	} else if responder.ModelEnabled() {
		zap.S().Infow("AI service initialized successfully", "model", cfg.AI.Model)
	} else {
		zap.S().Info("Ark 凭证未配置，演示机器人使用目录回显")
	}

	// 语音识别为可选能力
	var recognizer speechhandler.Recognizer
	opts := widget.Options{
		Bots:       registry,
		Dispatcher: dispatch.NewClient(dispatch.WithTimeout(cfg.Widget.WebhookTimeout)),
		Tracker:    session.NewTracker(recorder),
		ReplyDelay: cfg.Widget.ReplyDelay,
		// 组件关闭后演示机器人不再保留该会话的上下文
		OnClose:    responder.Forget,
	}
	if cfg.Speech.Enabled() {
		asr := speech.NewASRClient(cfg.Speech)
		opts.Transcriber = asr
		recognizer = asr
		zap.S().Info("speech recognition enabled")
	} else {
		zap.S().Info("语音识别凭证未配置，跳过语音功能初始化")
	}
	manager := widget.NewManager(opts)
	defer manager.CloseAll()

	stats := analytics.NewService(repo, cfg.Analytics.ActiveWindow)
	if err := stats.Follow(ctx, broker, time.Second); err != nil {
		return err
	}
	stats.Refresh(ctx)

	jobs := scheduler.New(stats, manager, scheduler.Options{
		RefreshSpec: cfg.Analytics.RefreshSpec,
		EvictSpec:   cfg.Widget.EvictSpec,
		MaxIdle:     cfg.Widget.MaxIdle,
	})
	if err := jobs.Start(); err != nil {
		return err
	}
	defer jobs.Stop()

	router := handler.NewRouter(handler.Deps{
		CORSOrigins: cfg.Server.CORSOrigins,
		Widgets:     manager,
		Bots:        registry,
		Analytics:   stats,
		Demo:        responder,
		Recognizer:  recognizer,
		Store:       repo,
	})

	return startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	zap.S().Infow("Botrix backend listening", "addr", addr)
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
