package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-assistant/internal/api"
	"whatsapp-assistant/internal/automation"
	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/directory"
	"whatsapp-assistant/internal/encryption"
	"whatsapp-assistant/internal/llm"
	"whatsapp-assistant/internal/logging"
	"whatsapp-assistant/internal/menu"
	"whatsapp-assistant/internal/metrics"
	"whatsapp-assistant/internal/settings"
	"whatsapp-assistant/internal/webhook"
	"whatsapp-assistant/internal/whatsapp"
	"whatsapp-assistant/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()
	logger := logging.New(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	store := database.NewStore(db)

	seed, err := database.LoadSeed(cfg.SeedFile)
	if err != nil {
		return err
	}
	if err := database.Seed(ctx, store, seed); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if err := database.SyncConfig(ctx, store, cfg); err != nil {
		return fmt.Errorf("sync config: %w", err)
	}

	if cfg.EncryptionKey == "" {
		logger.Warn("ENCRYPTION_KEY not set, using a random key; stored replies will not survive a restart")
	}
	cipher, err := encryption.New(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	appSettings := settings.New(store)
	assistantName, err := appSettings.String(ctx, settings.KeyAssistantName, settings.DefaultAssistantName)
	if err != nil {
		return err
	}

	whatsappClient := whatsapp.NewClient(cfg, logger)
	if !whatsappClient.Configured() {
		logger.Warn("WhatsApp credentials missing, replies will fail until they are set")
	}
	llmClient := llm.NewClient(cfg).WithSystemPrompt(fmt.Sprintf(
		"You are %s, a personal assistant answering WhatsApp messages on behalf of your owner. "+
			"Be brief and friendly, and offer to pass the conversation to a human when you cannot help.",
		assistantName))

	hub := ws.NewHub(logger)
	catalog := menu.NewCatalog(store)
	contacts := directory.New(store, logger)

	engine := automation.NewEngine(automation.Deps{
		Contacts:  contacts,
		Settings:  appSettings,
		Positions: store,
		Messages:  store,
		Menu:      catalog,
		Transport: whatsappClient,
		LLM:       llmClient,
		Hub:       hub,
		Cipher:    cipher,
		Logger:    logger,
	})
	hub.HandleFunc(engine.HandleSocketFrame)
	go hub.Run(ctx)

	janitor := automation.NewPositionJanitor(store, cfg.PositionTTL, cfg.PositionSweepSchedule, logger)
	if err := janitor.Start(); err != nil {
		return err
	}
	defer janitor.Stop()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(logger))

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	webhookHandler := webhook.NewHandler(cfg, engine, logger)

	// Webhook Routes
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleMessage)

	// Operator socket
	r.GET(cfg.WSPath, gin.WrapF(hub.ServeWs))

	r.GET("/metrics", metrics.Handler())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sockets": hub.Count()})
	})

	apiGroup := r.Group("/api")
	api.NewContactHandler(contacts).Register(apiGroup)
	api.NewMessageHandler(store, cipher, engine).Register(apiGroup)
	api.NewMenuHandler(catalog).Register(apiGroup)
	api.NewSettingsHandler(appSettings).Register(apiGroup)
	api.NewSimulateHandler(engine).Register(apiGroup)
	api.NewChatHandler(llmClient).Register(apiGroup)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "ws_path", cfg.WSPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
