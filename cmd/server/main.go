package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/david/grant-assistant/internal/api"
	"github.com/david/grant-assistant/internal/app"
	"github.com/david/grant-assistant/internal/auth"
	"github.com/david/grant-assistant/internal/config"
	"github.com/david/grant-assistant/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	authService, err := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Clients)
	if err != nil {
		log.Fatalf("Auth setup failed: %v", err)
	}

	srv, err := api.NewServer(api.Deps{
		Source:      a.Source,
		Matcher:     a.Matcher,
		Composer:    a.Composer,
		Validator:   a.Validator,
		Deadlines:   a.Deadlines,
		Auth:        authService,
		Log:         lg.WithFields(map[string]interface{}{"component": "api"}),
		CORSOrigins: cfg.Server.CORSOrigins,
		AdminSecret: cfg.Server.AdminSecret,
	})
	if err != nil {
		log.Fatalf("Server setup failed: %v", err)
	}

	go func() {
		log.Printf("Server starting on port %s...", cfg.Server.Port)
		if err := srv.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Echo.Shutdown(shutdownCtx); err != nil {
		lg.WithError(err).Error("shutdown failed", nil)
	}
}
