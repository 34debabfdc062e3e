package config

// defaultAPIBaseURL is the base URL used when the seeding environment
// variable is absent. Deployments override it at link time, e.g.
//
//	go build -ldflags "-X github.com/traindeck/traindeck/internal/config.defaultAPIBaseURL=http://api:3000"
var defaultAPIBaseURL = "http://localhost:3000"

type Config struct {
	Server  ServerConfig
	API     APIConfig
	Env     EnvConfig
	Journal JournalConfig
	Log     LogConfig
	MCP     MCPConfig
}

type ServerConfig struct {
	Port           int
	AllowedOrigins string // comma-separated CORS origins
}

type APIConfig struct {
	DefaultBaseURL string
	SeedEnv        string
}

type EnvConfig struct {
	DotEnvFile string
}

type JournalConfig struct {
	Path string
}

type LogConfig struct {
	Level string
}

type MCPConfig struct {
	Stdio bool
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           4100,
			AllowedOrigins: "*",
		},
		API: APIConfig{
			DefaultBaseURL: defaultAPIBaseURL,
			SeedEnv:        "API_BASE_URL",
		},
		Env: EnvConfig{
			DotEnvFile: ".env",
		},
		Journal: JournalConfig{
			Path: ":memory:",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend and environment
// variables.
//
// On macOS the backend is UserDefaults (domain: com.traindeck.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/traindeck/config.json.
//
// Environment variables (TRAINDECK_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
