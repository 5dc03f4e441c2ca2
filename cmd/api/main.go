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

	"github.com/riteshshukladev/MCP-Agent-for-X/internal/app"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/config"
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

	if err := cfg.X.Validate(); err != nil {
		if cfg.Server.StrictStartup {
			log.Fatalf("refusing to start: %v", err)
		}
		log.Printf("warning: %v; capability calls will fail until they are set", err)
	}
	if cfg.X.Username == "" {
		log.Println("warning: X_USERNAME not set, cache refresh will fail")
	}

	gateway, err := app.NewGateway(cfg)
	if err != nil {
		log.Fatalf("failed to build gateway: %v", err)
	}
	defer gateway.Close()

	startServer(ctx, cfg.Server, gateway)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, gateway *app.Gateway) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           gateway.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Streams never finish on their own; end them so Shutdown can drain.
	srv.RegisterOnShutdown(gateway.Close)

	log.Printf("X posting gateway listening on %s (stream: /sse, messages: /messages)", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
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
