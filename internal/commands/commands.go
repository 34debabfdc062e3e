// Package commands implements the command surface the front-end invokes:
// greeting, API base URL get/set, environment passthrough and runtime
// config. Transports (HTTP, MCP) call Invoke; everything else about a call
// (argument decoding, logging, metrics, journaling) happens here.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/traindeck/traindeck/internal/apiconfig"
	"github.com/traindeck/traindeck/internal/hostenv"
	"github.com/traindeck/traindeck/internal/metrics"
	"github.com/traindeck/traindeck/internal/storage"
)

// Command names as seen by callers.
const (
	CmdGreet            = "greet"
	CmdSetAPIBaseURL    = "set_api_base_url"
	CmdGetAPIBaseURL    = "get_api_base_url"
	CmdGetEnvVar        = "get_env_var"
	CmdGetEnvVars       = "get_env_vars"
	CmdGetRuntimeConfig = "get_runtime_config"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidArgs    = errors.New("invalid arguments")
)

// Recorder persists invocations. *storage.Store satisfies it.
type Recorder interface {
	RecordInvocation(inv storage.Invocation) error
}

type Deps struct {
	Store   *apiconfig.Store
	Env     *hostenv.Accessor
	Journal Recorder     // optional; nil disables journaling
	Logger  *slog.Logger // optional; defaults to slog.Default()
}

// RuntimeConfig is the settings bundle the front-end reads at startup.
type RuntimeConfig struct {
	APIBaseURL    string  `json:"API_BASE_URL"`
	ShowFooter    bool    `json:"SHOW_FOOTER"`
	DebugDatetime *string `json:"DEBUG_DATETIME"`
}

type handlerFunc func(ctx context.Context, args json.RawMessage) (any, error)

type Service struct {
	store    *apiconfig.Store
	env      *hostenv.Accessor
	journal  Recorder
	log      *slog.Logger
	handlers map[string]handlerFunc
}

func New(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		store:   deps.Store,
		env:     deps.Env,
		journal: deps.Journal,
		log:     log,
	}
	s.handlers = map[string]handlerFunc{
		CmdGreet:            s.invokeGreet,
		CmdSetAPIBaseURL:    s.invokeSetAPIBaseURL,
		CmdGetAPIBaseURL:    s.invokeGetAPIBaseURL,
		CmdGetEnvVar:        s.invokeGetEnvVar,
		CmdGetEnvVars:       s.invokeGetEnvVars,
		CmdGetRuntimeConfig: s.invokeGetRuntimeConfig,
	}
	return s
}

// Names returns the registered command names in sorted order.
func (s *Service) Names() []string {
	names := make([]string, 0, len(s.handlers))
	for n := range s.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Service) Greet(name string) string {
	return fmt.Sprintf("Hello, %s! You've been greeted from Go!", name)
}

func (s *Service) SetAPIBaseURL(url string) {
	s.store.Set(url)
	metrics.BaseURLUpdatesTotal.Inc()
}

func (s *Service) APIBaseURL() string {
	return s.store.Get()
}

func (s *Service) EnvVar(key string) *string {
	return s.env.Var(key)
}

func (s *Service) EnvVars(keys []string) map[string]*string {
	return s.env.Vars(keys)
}

// RuntimeConfig reports the current base URL together with the display
// settings taken from SHOW_FOOTER and DEBUG_DATETIME. The footer is shown
// unless SHOW_FOOTER is exactly "false".
func (s *Service) RuntimeConfig() RuntimeConfig {
	showFooter := true
	if v := s.env.Var("SHOW_FOOTER"); v != nil && *v == "false" {
		showFooter = false
	}
	debug := s.env.Var("DEBUG_DATETIME")
	if debug != nil && *debug == "" {
		debug = nil
	}
	return RuntimeConfig{
		APIBaseURL:    s.store.Get(),
		ShowFooter:    showFooter,
		DebugDatetime: debug,
	}
}

// Invoke runs the named command with JSON-encoded args and returns a
// JSON-marshalable result. transport labels the caller ("http", "mcp") in
// logs, metrics and the journal.
func (s *Service) Invoke(ctx context.Context, transport, name string, args json.RawMessage) (any, error) {
	h, ok := s.handlers[name]
	if !ok {
		s.log.WarnContext(ctx, "unknown command", "command", name, "transport", transport)
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	start := time.Now()
	result, err := h(ctx, args)
	elapsed := time.Since(start)

	outcome := storage.StatusOK
	if err != nil {
		outcome = storage.StatusError
	}
	metrics.InvocationsTotal.WithLabelValues(name, transport, outcome).Inc()
	metrics.InvocationDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		s.log.WarnContext(ctx, "command failed", "command", name, "transport", transport, "error", err)
	} else {
		s.log.DebugContext(ctx, "command handled", "command", name, "transport", transport, "elapsed", elapsed)
	}

	s.record(ctx, storage.Invocation{
		ID:        uuid.NewString(),
		CreatedAt: start,
		Command:   name,
		Transport: transport,
		Args:      compactArgs(args),
		Status:    outcome,
		Error:     errString(err),
		Duration:  elapsed,
	})

	return result, err
}

func (s *Service) record(ctx context.Context, inv storage.Invocation) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordInvocation(inv); err != nil {
		metrics.JournalErrorsTotal.Inc()
		s.log.ErrorContext(ctx, "journaling invocation", "command", inv.Command, "error", err)
	}
}

func (s *Service) invokeGreet(_ context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Name *string `json:"name"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Name == nil {
		return nil, missingArg("name")
	}
	return s.Greet(*args.Name), nil
}

func (s *Service) invokeSetAPIBaseURL(_ context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		URL *string `json:"url"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.URL == nil {
		return nil, missingArg("url")
	}
	s.SetAPIBaseURL(*args.URL)
	return nil, nil
}

func (s *Service) invokeGetAPIBaseURL(_ context.Context, _ json.RawMessage) (any, error) {
	return s.APIBaseURL(), nil
}

func (s *Service) invokeGetEnvVar(_ context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Key *string `json:"key"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Key == nil {
		return nil, missingArg("key")
	}
	return s.EnvVar(*args.Key), nil
}

func (s *Service) invokeGetEnvVars(_ context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Keys []string `json:"keys"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Keys == nil {
		return nil, missingArg("keys")
	}
	return s.EnvVars(args.Keys), nil
}

func (s *Service) invokeGetRuntimeConfig(_ context.Context, _ json.RawMessage) (any, error) {
	return s.RuntimeConfig(), nil
}

// decodeArgs unmarshals raw into v. An empty body or JSON null decodes as
// an empty object.
func decodeArgs(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}

func missingArg(name string) error {
	return fmt.Errorf("%w: missing required argument %q", ErrInvalidArgs, name)
}

func compactArgs(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil || buf.Len() == 0 || buf.String() == "null" {
		return "{}"
	}
	return buf.String()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
