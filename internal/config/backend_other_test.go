//go:build !darwin

package config

import (
	"path/filepath"
	"testing"
)

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traindeck", "config.json")

	b := newFileBackend(path)
	if err := setKeyWith(b, "server.port", "4200"); err != nil {
		t.Fatalf("SetKey port: %v", err)
	}
	if err := setKeyWith(b, "api.default_base_url", "http://api:3000"); err != nil {
		t.Fatalf("SetKey url: %v", err)
	}

	reloaded := newFileBackend(path)
	port, ok, err := reloaded.GetInt("server.port")
	if err != nil || !ok || port != 4200 {
		t.Errorf("GetInt = (%d, %v, %v), want (4200, true, nil)", port, ok, err)
	}
	url, ok, err := reloaded.GetString("api.default_base_url")
	if err != nil || !ok || url != "http://api:3000" {
		t.Errorf("GetString = (%q, %v, %v)", url, ok, err)
	}
}
