package health

import (
	"context"
	"net/http"
	"time"

	"ms-booking/internal/utils"
)

// Pinger checks one dependency, e.g. (*bun.DB).PingContext.
type Pinger func(ctx context.Context) error

type Status struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

type Handler struct {
	Service string
	Checks  map[string]Pinger
	Timeout time.Duration
}

func NewHandler(service string, checks map[string]Pinger) *Handler {
	return &Handler{Service: service, Checks: checks, Timeout: 2 * time.Second}
}

// ServeHTTP answers 200 when every dependency responds and 503 otherwise.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	st := Status{
		Status:    "ok",
		Service:   h.Service,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string, len(h.Checks)),
	}
	code := http.StatusOK
	for name, ping := range h.Checks {
		if err := ping(ctx); err != nil {
			st.Checks[name] = "down: " + err.Error()
			st.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		st.Checks[name] = "up"
	}

	utils.WriteJSON(w, code, st)
}
