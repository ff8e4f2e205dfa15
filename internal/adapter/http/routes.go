package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ethicsdesk/ethicsdesk/internal/domain/user"
	"github.com/ethicsdesk/ethicsdesk/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.HandleHealth)
	r.Get("/health/ready", h.HandleReady)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		r.Route("/proposals", func(r chi.Router) {
			read := middleware.RequireScope(user.ScopeProposalsRead)
			write := middleware.RequireScope(user.ScopeProposalsWrite)

			r.With(read).Get("/", h.ListProposals)
			r.With(write).Post("/", h.CreateProposal)
			r.With(read).Get("/{id}", h.GetProposal)
			r.With(write).Put("/{id}", h.UpdateProposal)
			r.With(write).Post("/{id}/submit", h.SubmitProposal)
			r.With(write).Post("/{id}/withdraw", h.WithdrawProposal)
			r.With(write).Post("/{id}/revisions", h.CreateRevision)
			r.With(write).Post("/{id}/copy", h.CreateCopy)
			r.With(read).Get("/{id}/studies", h.ListStudies)
			r.With(write).Put("/{id}/studies", h.ReplaceStudies)
			r.With(middleware.RequireScope(user.ScopeReviewsRead)).
				Get("/{id}/reviews", h.ListProposalReviews)
		})

		r.Route("/reviews", func(r chi.Router) {
			read := middleware.RequireScope(user.ScopeReviewsRead)
			write := middleware.RequireScope(user.ScopeReviewsWrite)

			r.With(read).Get("/{id}", h.GetReview)
			// Reviewer assignment is a secretary action.
			r.With(write, middleware.RequireRole(user.RoleSecretary, user.RoleAdmin)).
				Post("/{id}/reviewers", h.AssignReviewers)
			r.With(read).Get("/{id}/decisions", h.ListDecisions)
			r.With(read).Get("/{id}/decisions/me", h.GetMyDecision)
			r.With(write).Post("/{id}/decisions", h.SubmitDecision)
		})

		// Reference data. Reads are open to every authenticated user;
		// writes are secretary configuration.
		r.Route("/refdata", func(r chi.Router) {
			r.Get("/", h.ListRefData)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireScope(user.ScopeRefDataWrite))
				r.Use(middleware.RequireRole(user.RoleSecretary, user.RoleAdmin))
				r.Post("/", h.CreateRefData)
				r.Put("/{id}", h.UpdateRefData)
				r.Delete("/{id}", h.DeleteRefData)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", h.GetCurrentUser)
			r.Get("/directory/search", h.SearchDirectory)
			r.Get("/directory/{id}", h.ResolveDirectoryID)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(user.RoleSecretary, user.RoleAdmin))
				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
				r.Get("/{id}", h.GetUser)
				r.Put("/{id}", h.UpdateUser)
			})
		})

		r.Route("/auth/keys", func(r chi.Router) {
			r.Post("/", h.CreateAPIKey)
			r.With(middleware.RequireRole(user.RoleAdmin)).
				Delete("/{id}", h.DeleteAPIKey)
		})
	})
}
