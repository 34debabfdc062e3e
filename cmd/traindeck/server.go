package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/traindeck/traindeck/internal/api"
	"github.com/traindeck/traindeck/internal/apiconfig"
	"github.com/traindeck/traindeck/internal/commands"
	"github.com/traindeck/traindeck/internal/config"
	"github.com/traindeck/traindeck/internal/hostenv"
	"github.com/traindeck/traindeck/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the command server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the command server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context(), cmd.ErrOrStderr())
	},
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	fmt.Fprintf(os.Stderr, "traindeck version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	token, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	journal, err := storage.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			slog.Warn("closing journal", "error", err)
		}
	}()

	svc := newCommandService(cfg, journal, logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: api.NewAppHandler(api.AppDeps{
			Commands:       svc,
			Journal:        journal,
			Token:          token,
			AllowedOrigins: api.ParseOrigins(cfg.Server.AllowedOrigins),
			Logger:         logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("traindeck listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if cfg.MCP.Stdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Commands: svc, Version: version})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			if err := stdioSrv.Listen(gCtx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newCommandService merges the .env file into the process environment and
// then seeds the base URL store from it, so a variable already set in the
// process wins over the file and the default applies only when neither has
// the seed variable.
func newCommandService(cfg config.Config, journal commands.Recorder, logger *slog.Logger) *commands.Service {
	if err := config.LoadDotEnv(cfg.Env.DotEnvFile); err != nil {
		logger.Warn("could not load dotenv file", "path", cfg.Env.DotEnvFile, "error", err)
	}

	store := apiconfig.NewFromEnv(cfg.API.SeedEnv, cfg.API.DefaultBaseURL)
	logger.Info("API base URL initialized", "seed_env", cfg.API.SeedEnv, "base_url", store.Get())

	return commands.New(commands.Deps{
		Store:   store,
		Env:     hostenv.New(),
		Journal: journal,
		Logger:  logger,
	})
}

func showStatus(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		printError(w, "config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	switch {
	case err != nil:
		printStatus(w, "Server", "stopped")
	case resp.StatusCode == http.StatusOK:
		resp.Body.Close()
		printStatus(w, "Server", "running on port %d", cfg.Server.Port)
	default:
		resp.Body.Close()
		printStatus(w, "Server", "error (HTTP %d)", resp.StatusCode)
	}

	printStatus(w, "Seed variable", "%s", cfg.API.SeedEnv)
	printStatus(w, "Default base URL", "%s", cfg.API.DefaultBaseURL)
	printStatus(w, "Journal", "%s", cfg.Journal.Path)
	printStatus(w, "MCP stdio", "%t", cfg.MCP.Stdio)
	return nil
}
