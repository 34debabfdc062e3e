package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/traindeck/traindeck/internal/apiconfig"
	"github.com/traindeck/traindeck/internal/commands"
	"github.com/traindeck/traindeck/internal/hostenv"
	"github.com/traindeck/traindeck/internal/storage"
)

const testToken = "test-token-12345"

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestCommands(t *testing.T, env map[string]string) (*commands.Service, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	svc := commands.New(commands.Deps{
		Store:   apiconfig.New("http://localhost:3000"),
		Env:     hostenv.NewWithLookup(lookup),
		Journal: store,
		Logger:  discardLogger,
	})
	return svc, store
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
