// Package status serves the local health, status and metrics endpoints.
package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
	"github.com/xivwolf/a-tour-ingame/internal/stream"
)

// Reporter is the read side of the stream client.
type Reporter interface {
	Stats() stream.Stats
	State() stream.State
}

// Report is the /status document.
type Report struct {
	Stream  stream.Stats       `json:"stream"`
	Rules   []model.FilterRule `json:"rules"`
	Started time.Time          `json:"started"`
	Uptime  string             `json:"uptime"`
}

type StatusHandler struct {
	client   Reporter
	rules    *model.RuleStore
	gatherer prometheus.Gatherer
	started  time.Time
}

func NewStatusHandler(client Reporter, rules *model.RuleStore, gatherer prometheus.Gatherer) *StatusHandler {
	return &StatusHandler{
		client:   client,
		rules:    rules,
		gatherer: gatherer,
		started:  time.Now(),
	}
}

func (h *StatusHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Get("/status", h.Status)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Health answers 200 while the stream is open and 503 otherwise.
func (h *StatusHandler) Health(w http.ResponseWriter, _ *http.Request) {
	state := h.client.State()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if state != stream.Open {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write([]byte(state.String()))
}

func (h *StatusHandler) Status(w http.ResponseWriter, _ *http.Request) {
	report := Report{
		Stream:  h.client.Stats(),
		Rules:   h.rules.Snapshot().Rules(),
		Started: h.started,
		Uptime:  time.Since(h.started).Truncate(time.Second).String(),
	}

	data, err := json.Marshal(report)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
