package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"irrigation-planner/internal/app"
	"irrigation-planner/internal/config"
	"irrigation-planner/internal/httpapi"
	"irrigation-planner/internal/telegram"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. Build database, model, weather, narrator and services
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	// 3. REST API
	e := httpapi.New(application.HTTPHandler(), cfg.APIJWTSecret)

	// 4. Telegram Bot, when configured
	if err := cfg.RequireTelegram(); err != nil {
		log.Printf("Telegram bot disabled: %v", err)
	} else {
		sessions := telegram.NewSessionRepository(application.DB().SQL)
		bot, err := telegram.NewBot(cfg, application.Service, application.Plots, sessions, application.Metrics, application.DataDir())
		if err != nil {
			log.Fatalf("Failed to initialize Telegram Bot: %v", err)
		}
		bot.RegisterHandlers(e)
	}

	// 5. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: e,
	}

	go func() {
		log.Printf("Irrigation server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
