package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/traindeck/traindeck/internal/commands"
	"github.com/traindeck/traindeck/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Journal lists recorded invocations for the history endpoint.
type Journal interface {
	ListInvocations(command string, limit, offset int) ([]storage.Invocation, error)
	GetInvocation(id string) (storage.Invocation, error)
	CountInvocations(command string) (int, error)
}

type AppDeps struct {
	Commands       *commands.Service
	Journal        Journal // optional; if nil the history endpoints return 404
	Token          string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewAppHandler returns the HTTP face of the command surface:
//
//	GET  /health
//	GET  /metrics
//	GET  /commands           (bearer auth)
//	POST /invoke/{command}   (bearer auth)
//	GET  /invocations        (bearer auth)
//	GET  /invocations/{id}   (bearer auth)
func NewAppHandler(deps AppDeps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token, log))
		r.Get("/commands", handleListCommands(deps))
		r.Post("/invoke/{command}", handleInvoke(deps))
		if deps.Journal != nil {
			r.Get("/invocations", handleListInvocations(deps))
			r.Get("/invocations/{id}", handleGetInvocation(deps))
		}
	})

	return r
}

// ParseOrigins splits a comma-separated origin list, dropping blanks.
func ParseOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleInvoke(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "command")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "request body exceeds %d bytes", tooLarge.Limit)
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading request body: %v", err)
			return
		}

		result, err := deps.Commands.Invoke(r.Context(), "http", name, body)
		switch {
		case errors.Is(err, commands.ErrUnknownCommand):
			httpError(w, http.StatusNotFound, "not_found", "%v", err)
			return
		case errors.Is(err, commands.ErrInvalidArgs):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func handleListCommands(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Commands.Names())
	}
}

// handleListInvocations returns one page of the journal, newest first, with
// the matching total in X-Total-Count. ?command= narrows both.
func handleListInvocations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		command := r.URL.Query().Get("command")

		invs, err := deps.Journal.ListInvocations(command, limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list invocations: %v", err)
			return
		}
		if invs == nil {
			invs = []storage.Invocation{}
		}
		total, err := deps.Journal.CountInvocations(command)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count invocations: %v", err)
			return
		}
		w.Header().Set("X-Total-Count", strconv.Itoa(total))
		writeJSON(w, http.StatusOK, invs)
	}
}

func handleGetInvocation(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := deps.Journal.GetInvocation(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "invocation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get invocation: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"elapsed", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
