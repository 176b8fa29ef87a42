package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Credential store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite3"
	StorePostgres = "postgres"
	StorePebble   = "pebble"
)

// Config is the complete client configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
	Events  EventsConfig  `yaml:"events"`
	Tracing TracingConfig `yaml:"tracing"`

	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
	DeviceID    string `yaml:"device_id"`
}

// APIConfig points at the chat backend.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	SocketURL string `yaml:"socket_url"`

	RequestTimeout    time.Duration `yaml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout"`
}

// StoreConfig selects where credentials are persisted.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ServerConfig configures the local control API.
type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	DebugRoutes bool   `yaml:"debug_routes"`
}

type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

type TracingConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:           "http://localhost:5000/api",
			SocketURL:         "ws://localhost:5000/ws",
			RequestTimeoutRaw: "15s",
		},
		Store: StoreConfig{
			Driver: StoreSQLite,
			DSN:    "chat-client.db",
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8090",
		},
		Events: EventsConfig{
			Exchange: "chat.events",
		},
		ServiceName: "chat-client",
		Environment: "dev",
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and environment variables, in increasing precedence. ${VAR} references
// inside the file are expanded.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(&cfg)

	timeout, err := time.ParseDuration(cfg.API.RequestTimeoutRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing request_timeout %q: %w", cfg.API.RequestTimeoutRaw, err)
	}
	cfg.API.RequestTimeout = timeout

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// LoadDotEnv adds variables from a .env file to the environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.API.BaseURL = getEnv("CHAT_API_URL", cfg.API.BaseURL)
	cfg.API.SocketURL = getEnv("CHAT_SOCKET_URL", cfg.API.SocketURL)
	cfg.API.RequestTimeoutRaw = getEnv("CHAT_REQUEST_TIMEOUT", cfg.API.RequestTimeoutRaw)
	cfg.Store.Driver = getEnv("CHAT_STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = getEnv("CHAT_STORE_DSN", cfg.Store.DSN)
	cfg.Server.ListenAddr = getEnv("CHAT_LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Events.AMQPURL = getEnv("AMQP_URL", cfg.Events.AMQPURL)
	cfg.Events.Exchange = getEnv("AMQP_EXCHANGE", cfg.Events.Exchange)
	cfg.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.DeviceID = getEnv("DEVICE_ID", cfg.DeviceID)

	if raw, ok := os.LookupEnv("DEBUG_ROUTES"); ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Server.DebugRoutes = v
		}
	}
}

// Validate checks that the configuration can be used to start the client.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.SocketURL == "" {
		return fmt.Errorf("api.socket_url is required")
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be positive")
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite, StorePostgres, StorePebble:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unsupported store.driver %q", c.Store.Driver)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
