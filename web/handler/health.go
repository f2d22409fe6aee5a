package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/pkg/httpkit"
	"github.com/screwyprof/oppfeed/web/api"
)

const HealthRoute = http.MethodGet + " " + "/healthz"

var ErrNotReady = errors.New("database is not reachable")

// Pinger checks that a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	db Pinger
}

// NewHealth creates the health check. A nil pinger always reports ok.
func NewHealth(db Pinger) *Health {
	return &Health{db: db}
}

func (h *Health) AddRoutes(m *http.ServeMux) {
	m.Handle(HealthRoute, httpkit.HandlerFunc(h.Health))
}

func (h *Health) Health(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			return httpkit.JsonError(api.ServiceUnavailable(fmt.Errorf("%w: %w: %w", feed.ErrCatalogUnavailable, ErrNotReady, err)))
		}
	}

	return httpkit.JSON(api.HealthResponse{Status: "ok"})
}
