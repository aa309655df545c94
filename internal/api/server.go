package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/everafter-app/server/internal/concierge/graph"
	"github.com/everafter-app/server/internal/concierge/model"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Runner        graph.Runner
	Tenants       model.TenantRepository
	Kernels       model.KernelRepository
	Conversations model.ConversationRepository
}

// NewHandler returns the service's HTTP handler: the concierge chat API under
// tenant auth, plus an unauthenticated health check.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	r.Route("/api/concierge", func(r chi.Router) {
		r.Use(TenantAuth(deps.Tenants))
		r.Post("/chat", handleChat(deps.Runner))
		r.Get("/kernel", handleKernel(deps.Kernels))
		r.Delete("/chat/{conversationID}", handleResetConversation(deps.Conversations))
	})

	return r
}
