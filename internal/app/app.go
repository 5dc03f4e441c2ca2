// Package app assembles the gateway and the generation client from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/mark3labs/mcp-go/server"

	"github.com/riteshshukladev/MCP-Agent-for-X/internal/config"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/handler"
	mcpHandler "github.com/riteshshukladev/MCP-Agent-for-X/internal/handler/mcp"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/ai"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/cache"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/capability"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/session"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/xapi"
)

// Gateway is a fully wired capability server.
type Gateway struct {
	Sessions *session.Manager
	Registry *capability.Registry
	MCP      *server.MCPServer
	Cache    *cache.Store
	Handler  http.Handler
}

// NewGateway builds the X client, cache, capabilities and HTTP router.
func NewGateway(cfg *config.Config) (*Gateway, error) {
	x := xapi.NewClient(xapi.Config{
		APIKey:            cfg.X.APIKey,
		APISecret:         cfg.X.APISecret,
		AccessToken:       cfg.X.AccessToken,
		AccessTokenSecret: cfg.X.AccessTokenSecret,
		BaseURL:           cfg.X.BaseURL,
		RateLimit:         cfg.X.RateLimit,
	})
	return newGateway(cfg.Cache.Path, x, x, cfg.X.Username)
}

func newGateway(cachePath string, timeline cache.Timeline, publisher capability.Publisher, username string) (*Gateway, error) {
	store := cache.NewStore(cachePath, timeline, username)
	if snapshot, err := store.Load(); err == nil {
		log.Printf("[app] cache %s holds %d posts", store.Path(), len(snapshot))
	} else if !errors.Is(err, cache.ErrCacheMissing) {
		log.Printf("[app] warning: %v", err)
	}

	registry := capability.NewRegistry()
	if err := capability.NewPostCapabilities(store, publisher).Register(registry); err != nil {
		return nil, fmt.Errorf("register capabilities: %w", err)
	}

	mcpServer := mcpHandler.NewServer(registry)
	sessions := session.NewManager()
	gateway := mcpHandler.New(sessions, mcpServer)

	return &Gateway{
		Sessions: sessions,
		Registry: registry,
		MCP:      mcpServer,
		Cache:    store,
		Handler:  handler.NewRouter(sessions, gateway),
	}, nil
}

// Close ends every open session.
func (g *Gateway) Close() {
	g.Sessions.CloseAll()
}

// NewGenerator returns the generation client for the configured provider.
func NewGenerator(ctx context.Context, cfg *config.Config) (*ai.Generator, error) {
	var transport ai.Transport
	switch cfg.Generation.Provider {
	case config.ProviderArk:
		t, err := ai.NewArkTransport(ctx, cfg.AI)
		if err != nil {
			return nil, fmt.Errorf("ark transport: %w", err)
		}
		transport = t
	default:
		transport = ai.NewGeminiTransport(ai.GeminiConfig{
			APIKey:  cfg.Generation.GeminiAPIKey,
			Model:   cfg.Generation.GeminiModel,
			BaseURL: cfg.Generation.GeminiURL,
		})
	}

	log.Printf("[app] generation provider=%s, max retries=%d", cfg.Generation.Provider, cfg.Generation.MaxRetries)
	return ai.NewGenerator(transport, cfg.Generation.MaxRetries), nil
}
