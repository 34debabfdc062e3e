package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/traindeck/traindeck/internal/storage"
)

func setupAppHandler(t *testing.T, env map[string]string) (http.Handler, *storage.Store) {
	t.Helper()
	svc, store := newTestCommands(t, env)
	h := NewAppHandler(AppDeps{
		Commands:       svc,
		Journal:        store,
		Token:          testToken,
		AllowedOrigins: []string{"http://localhost:1420"},
		Logger:         discardLogger,
	})
	return h, store
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Error.Type
}

func TestHealth_NoAuth(t *testing.T) {
	h, _ := setupAppHandler(t, nil)
	rr := serve(h, authReq(http.MethodGet, "/health", "", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestMetrics_NoAuth(t *testing.T) {
	h, _ := setupAppHandler(t, nil)
	serve(h, authReq(http.MethodPost, "/invoke/get_api_base_url", "", testToken))

	rr := serve(h, authReq(http.MethodGet, "/metrics", "", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "traindeck_invocations_total") {
		t.Error("metrics output missing traindeck_invocations_total")
	}
}

func TestInvoke_RequiresToken(t *testing.T) {
	h, _ := setupAppHandler(t, nil)

	for _, tok := range []string{"", "wrong-token"} {
		rr := serve(h, authReq(http.MethodPost, "/invoke/get_api_base_url", "", tok))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", tok, rr.Code)
			continue
		}
		if got := errorType(t, rr); got != "authentication_error" {
			t.Errorf("error type = %q", got)
		}
	}
}

// TestInvoke_BaseURLScenario covers default, set, get over HTTP.
func TestInvoke_BaseURLScenario(t *testing.T) {
	h, _ := setupAppHandler(t, nil)

	rr := serve(h, authReq(http.MethodPost, "/invoke/get_api_base_url", "", testToken))
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `"http://localhost:3000"` {
		t.Fatalf("initial get: %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(h, authReq(http.MethodPost, "/invoke/set_api_base_url", `{"url":"http://example.com"}`, testToken))
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "null" {
		t.Fatalf("set: %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(h, authReq(http.MethodPost, "/invoke/get_api_base_url", "{}", testToken))
	if strings.TrimSpace(rr.Body.String()) != `"http://example.com"` {
		t.Errorf("get after set = %s", rr.Body.String())
	}
}

func TestInvoke_EnvVars(t *testing.T) {
	h, _ := setupAppHandler(t, map[string]string{"A": "alpha"})

	rr := serve(h, authReq(http.MethodPost, "/invoke/get_env_var", `{"key":"NONEXISTENT_KEY_X"}`, testToken))
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "null" {
		t.Errorf("get_env_var missing: %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(h, authReq(http.MethodPost, "/invoke/get_env_vars", `{"keys":["A","B"]}`, testToken))
	var got map[string]*string
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["A"] == nil || *got["A"] != "alpha" {
		t.Errorf("A = %v, want alpha", got["A"])
	}
	if v, ok := got["B"]; !ok || v != nil {
		t.Errorf("B = %v (present=%v), want null", v, ok)
	}
}

func TestInvoke_Greet(t *testing.T) {
	h, _ := setupAppHandler(t, nil)
	rr := serve(h, authReq(http.MethodPost, "/invoke/greet", `{"name":"Ada"}`, testToken))
	var got string
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != "Hello, Ada! You've been greeted from Go!" {
		t.Errorf("greet = %q", got)
	}
}

func TestInvoke_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantType string
	}{
		{"unknown command", "/invoke/self_destruct", "{}", http.StatusNotFound, "not_found"},
		{"missing arg", "/invoke/set_api_base_url", "{}", http.StatusBadRequest, "invalid_request_error"},
		{"malformed body", "/invoke/greet", "{not json", http.StatusBadRequest, "invalid_request_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupAppHandler(t, nil)
			rr := serve(h, authReq(http.MethodPost, tt.path, tt.body, testToken))
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body = %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if got := errorType(t, rr); got != tt.wantType {
				t.Errorf("error type = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestInvoke_BodyTooLarge(t *testing.T) {
	h, _ := setupAppHandler(t, nil)
	big := `{"url":"` + strings.Repeat("a", maxRequestBodySize) + `"}`
	rr := serve(h, authReq(http.MethodPost, "/invoke/set_api_base_url", big, testToken))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
	if got := errorType(t, rr); got != "invalid_request_error" {
		t.Errorf("error type = %q", got)
	}
}

func TestInvocations_ListAndGet(t *testing.T) {
	h, _ := setupAppHandler(t, nil)

	serve(h, authReq(http.MethodPost, "/invoke/greet", `{"name":"a"}`, testToken))
	serve(h, authReq(http.MethodPost, "/invoke/set_api_base_url", `{"url":"http://x"}`, testToken))

	rr := serve(h, authReq(http.MethodGet, "/invocations?limit=10", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var invs []storage.Invocation
	if err := json.NewDecoder(rr.Body).Decode(&invs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(invs) != 2 {
		t.Fatalf("got %d invocations, want 2", len(invs))
	}
	if got := rr.Header().Get("X-Total-Count"); got != "2" {
		t.Errorf("X-Total-Count = %q, want 2", got)
	}
	if invs[0].Command != "set_api_base_url" || invs[0].Transport != "http" {
		t.Errorf("newest = %+v", invs[0])
	}

	rr = serve(h, authReq(http.MethodGet, "/invocations/"+invs[1].ID, "", testToken))
	var one storage.Invocation
	if err := json.NewDecoder(rr.Body).Decode(&one); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if one.Command != "greet" {
		t.Errorf("Command = %q, want greet", one.Command)
	}

	rr = serve(h, authReq(http.MethodGet, "/invocations/missing", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing invocation status = %d, want 404", rr.Code)
	}
}

func TestInvocations_EmptyIsArray(t *testing.T) {
	h, _ := setupAppHandler(t, nil)
	rr := serve(h, authReq(http.MethodGet, "/invocations", "", testToken))
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("body = %s, want []", rr.Body.String())
	}
}

func TestCORS_Preflight(t *testing.T) {
	h, _ := setupAppHandler(t, nil)

	req := authReq(http.MethodOptions, "/invoke/get_api_base_url", "", "")
	req.Header.Set("Origin", "http://localhost:1420")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rr := serve(h, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:1420" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if rr.Code == http.StatusUnauthorized {
		t.Error("preflight must not require auth")
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	h, _ := setupAppHandler(t, nil)

	req := authReq(http.MethodPost, "/invoke/get_api_base_url", "", testToken)
	req.Header.Set("Origin", "http://evil.example")
	rr := serve(h, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestParseOrigins(t *testing.T) {
	got := ParseOrigins(" http://a , ,http://b,")
	if len(got) != 2 || got[0] != "http://a" || got[1] != "http://b" {
		t.Errorf("ParseOrigins = %v", got)
	}
	if got := ParseOrigins(""); len(got) != 0 {
		t.Errorf("ParseOrigins(\"\") = %v, want empty", got)
	}
}

func TestInvocations_TotalCountByCommand(t *testing.T) {
	h, _ := setupAppHandler(t, nil)
	for i := 0; i < 3; i++ {
		serve(h, authReq(http.MethodPost, "/invoke/greet", `{"name":"a"}`, testToken))
	}
	serve(h, authReq(http.MethodPost, "/invoke/get_api_base_url", "", testToken))

	rr := serve(h, authReq(http.MethodGet, "/invocations?limit=1&command=greet", "", testToken))
	if got := rr.Header().Get("X-Total-Count"); got != "3" {
		t.Errorf("X-Total-Count(greet) = %q, want 3", got)
	}
	rr = serve(h, authReq(http.MethodGet, "/invocations?limit=1", "", testToken))
	if got := rr.Header().Get("X-Total-Count"); got != "4" {
		t.Errorf("X-Total-Count = %q, want 4", got)
	}
}

func TestCommands_List(t *testing.T) {
	h, _ := setupAppHandler(t, nil)

	if rr := serve(h, authReq(http.MethodGet, "/commands", "", "")); rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rr.Code)
	}

	rr := serve(h, authReq(http.MethodGet, "/commands", "", testToken))
	var names []string
	if err := json.NewDecoder(rr.Body).Decode(&names); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"get_api_base_url", "get_env_var", "get_env_vars", "get_runtime_config", "greet", "set_api_base_url"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("commands = %v, want %v", names, want)
	}
}
