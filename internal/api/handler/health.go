package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/everest/authsvc/internal/api/middleware"
	"github.com/everest/authsvc/internal/api/response"
)

// Pinger checks connectivity to a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

const pingTimeout = 2 * time.Second

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      Pinger
	cache   Pinger
	version string
}

// NewHealthHandler creates a new HealthHandler. cache may be nil when the
// claims cache is disabled.
func NewHealthHandler(db, cache Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, version: version}
}

type componentStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

type healthData struct {
	Status   string           `json:"status"`
	Version  string           `json:"version"`
	Database componentStatus  `json:"database"`
	Cache    *componentStatus `json:"cache,omitempty"`
}

// ServeHTTP reports "healthy" or "degraded" with status 200 in both cases.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	data := healthData{
		Status:   "healthy",
		Version:  h.version,
		Database: check(r.Context(), h.db),
	}
	if !data.Database.Connected {
		data.Status = "degraded"
	}
	if h.cache != nil {
		c := check(r.Context(), h.cache)
		data.Cache = &c
		if !c.Connected {
			data.Status = "degraded"
		}
	}

	response.Success(w, http.StatusOK, data, requestID)
}

func check(ctx context.Context, p Pinger) componentStatus {
	if p == nil {
		return componentStatus{Error: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return componentStatus{Error: err.Error()}
	}
	return componentStatus{Connected: true}
}
