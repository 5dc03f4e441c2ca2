package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	mcpHandler "github.com/riteshshukladev/MCP-Agent-for-X/internal/handler/mcp"
	middlewarePkg "github.com/riteshshukladev/MCP-Agent-for-X/internal/middleware"
	"github.com/riteshshukladev/MCP-Agent-for-X/internal/service/session"
	"github.com/riteshshukladev/MCP-Agent-for-X/pkg/utils"
)

// NewRouter wires HTTP routes to the gateway handler.
func NewRouter(sessions *session.Manager, gateway *mcpHandler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	gateway.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": sessions.Len(),
		})
	})

	return r
}
