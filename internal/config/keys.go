package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "TRAINDECK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.allowed_origins", typ: kString, env: "TRAINDECK_SERVER_ALLOWED_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.AllowedOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AllowedOrigins },
	},
	{
		key: "api.default_base_url", typ: kString, env: "TRAINDECK_API_DEFAULT_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.API.DefaultBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.API.DefaultBaseURL },
	},
	{
		key: "api.seed_env", typ: kString, env: "TRAINDECK_API_SEED_ENV",
		apply:   func(cfg *Config, v any) { cfg.API.SeedEnv = v.(string) },
		extract: func(cfg Config) any { return cfg.API.SeedEnv },
	},
	{
		key: "env.dotenv_file", typ: kString, env: "TRAINDECK_ENV_DOTENV_FILE",
		apply:   func(cfg *Config, v any) { cfg.Env.DotEnvFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Env.DotEnvFile },
	},
	{
		key: "journal.path", typ: kString, env: "TRAINDECK_JOURNAL_PATH",
		apply:   func(cfg *Config, v any) { cfg.Journal.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Journal.Path },
	},
	{
		key: "log.level", typ: kString, env: "TRAINDECK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "mcp.stdio", typ: kBool, env: "TRAINDECK_MCP_STDIO",
		apply:   func(cfg *Config, v any) { cfg.MCP.Stdio = v.(bool) },
		extract: func(cfg Config) any { return cfg.MCP.Stdio },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parseRaw converts a textual value into the key's Go type.
func parseRaw(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (s.typ != kString && raw == "") {
			continue
		}
		v, err := parseRaw(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseRaw(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
