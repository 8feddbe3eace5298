package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vstarikov/govorun/internal/ai"
	"github.com/vstarikov/govorun/internal/config"
	"github.com/vstarikov/govorun/internal/delivery"
	"github.com/vstarikov/govorun/internal/history"
	"github.com/vstarikov/govorun/internal/notificator"
	"github.com/vstarikov/govorun/internal/router"
	"github.com/vstarikov/govorun/internal/storage"
	"github.com/vstarikov/govorun/internal/telegram"
)

func main() {

	// =========================================================================
	// ENV / CONFIG
	// =========================================================================

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	baseLogger, _ := zap.NewProduction()
	if cfg.DebugMode {
		baseLogger, _ = zap.NewDevelopment()
	}
	defer baseLogger.Sync()
	zl := baseLogger.Sugar()

	// =========================================================================
	// MODEL ROUTER
	// =========================================================================

	backends, err := cfg.Backends()
	if err != nil {
		log.Fatalf("backends: %v", err)
	}

	var opts []router.Option
	if len(cfg.ReactionModelOrder) > 0 {
		opts = append(opts, router.WithOperationOrder(router.OpReaction, cfg.ReactionModelOrder...))
	}

	modelRouter, err := router.New(backends, opts...)
	if err != nil {
		log.Fatalf("router: %v", err)
	}

	// =========================================================================
	// CONVERSATION STORE
	// =========================================================================

	store, err := history.New(cfg.TokenLimit, cfg.StorePath, zl)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	if err := store.Load(); err != nil {
		log.Fatalf("store load: %v", err)
	}

	// =========================================================================
	// AI CLIENTS
	// =========================================================================

	ctx := context.Background()
	providers := make(map[string]bool)
	for _, b := range backends {
		providers[b.Provider] = true
	}

	clients := make(map[string]ai.Client)
	if providers[ai.ProviderGemini] {
		gc, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Fatalf("gemini: %v", err)
		}
		clients[ai.ProviderGemini] = gc
	}
	if providers[ai.ProviderOpenAI] {
		oc, err := ai.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Fatalf("openai: %v", err)
		}
		clients[ai.ProviderOpenAI] = oc
	}

	aiService, err := ai.NewService(modelRouter, clients, store, cfg.Language)
	if err != nil {
		log.Fatalf("ai service: %v", err)
	}

	// =========================================================================
	// MEDIA ARCHIVE
	// =========================================================================

	archive := storage.NewNopArchive()
	if cfg.MediaArchiveEnabled {
		archive, err = storage.NewS3Archive(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
		})
		if err != nil {
			log.Fatalf("media archive: %v", err)
		}
	}

	// =========================================================================
	// TELEGRAM BOT
	// =========================================================================

	notify := notificator.NewTelegramNotificator(cfg.AdminChatID)

	botApp, err := telegram.NewBotApp(cfg, aiService, store, archive, notify)
	if err != nil {
		log.Fatalf("telegram: %v", err)
	}
	notify.SetBot(botApp.Bot())

	go botApp.Run()

	// =========================================================================
	// BACKGROUND JOBS
	// =========================================================================

	if cfg.CompactInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.CompactInterval)
			defer ticker.Stop()

			for range ticker.C {
				if err := store.Compact(); err != nil {
					log.Printf("[compact] error: %v", err)
				} else {
					log.Printf("[compact] store compacted")
				}
			}
		}()
	}

	// =========================================================================
	// HTTP (debug / ops)
	// =========================================================================

	h := delivery.NewHandler(store, modelRouter, zl)
	r := delivery.NewRouter(h)

	addr := ":" + cfg.Port
	zl.Infow("listening", "addr", addr)

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
