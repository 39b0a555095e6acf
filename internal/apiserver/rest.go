package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

// maxBodyBytes bounds request bodies; transcripts are capped well below this.
const maxBodyBytes = 4 << 20

// Options configures the REST handler around a Service.
type Options struct {
	Name           string
	Version        string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// OptionsFromConfig derives handler options from the engine configuration.
func OptionsFromConfig(name string, cfg engine.Config) Options {
	return Options{
		Name:           name,
		Version:        cfg.Version,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}
}

// NewHandler returns the JSON API: the three operations plus descriptor,
// health and metrics routes, wrapped in recover, access log, CORS and rate limiting.
func NewHandler(svc *Service, opts Options) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", describe(opts))
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/metrics", handleMetrics)
	mux.HandleFunc("POST /api/transcript", handle(svc.FetchTranscript))
	mux.HandleFunc("POST /api/generate", handle(svc.GenerateInsights))
	mux.HandleFunc("POST /api/download", handle(svc.RenderExport))
	mux.HandleFunc("POST /api/render", handle(svc.RenderExport))

	var h http.Handler = mux
	h = rateLimit(h, opts.RateLimitRPS, opts.RateLimitBurst)
	h = cors(h, opts.CORSOrigins)
	h = accessLog(h)
	h = recoverPanic(h)
	return h
}

func describe(opts Options) http.HandlerFunc {
	body := map[string]any{
		"name":    opts.Name,
		"version": opts.Version,
		"status":  "running",
		"endpoints": map[string]string{
			"health":     "GET /api/health",
			"metrics":    "GET /api/metrics",
			"transcript": "POST /api/transcript",
			"generate":   "POST /api/generate",
			"download":   "POST /api/download",
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(engine.FormatMetrics()))
}

// handle adapts one Service operation to a JSON POST handler.
func handle[In, Out any](op func(context.Context, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&in); err != nil {
			msg := "Request body must be a JSON object."
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				msg = "Request body is too large."
			}
			writeError(w, &APIError{Code: engine.KindInvalidInput, Message: msg, Status: http.StatusBadRequest})
			return
		}
		out, err := op(r.Context(), in)
		if err != nil {
			apiErr := ToAPIError(err)
			if r.Context().Err() != nil {
				// Client went away; nobody reads the body.
				slog.Debug("api: request abandoned", slog.String("path", r.URL.Path), slog.Any("error", err))
			} else {
				slog.Warn("api: request failed",
					slog.String("path", r.URL.Path),
					slog.String("code", string(apiErr.Code)),
					slog.Any("error", err),
				)
			}
			writeError(w, apiErr)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeError(w http.ResponseWriter, e *APIError) {
	writeJSON(w, e.Status, e)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("api: write response", slog.Any("error", err))
	}
}
