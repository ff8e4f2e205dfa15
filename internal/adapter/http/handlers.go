package http

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ethicsdesk/ethicsdesk/internal/port/messagequeue"
	"github.com/ethicsdesk/ethicsdesk/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Proposals *service.ProposalService
	Reviews   *service.ReviewService
	RefData   *service.RefDataService
	Users     *service.UserService
	Auth      *service.AuthService
	Pool      *pgxpool.Pool
	Queue     messagequeue.Queue
}

// HandleHealth is the liveness probe.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady is the readiness probe: the service is ready when the database
// answers and the message queue is connected.
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	if h.Pool != nil {
		if err := h.Pool.Ping(r.Context()); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	}
	if h.Queue != nil {
		if h.Queue.IsConnected() {
			checks["nats"] = "ok"
		} else {
			checks["nats"] = "disconnected"
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, checks)
}
