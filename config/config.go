// Package config loads runtime settings. Non-secret settings live in
// config.json (created with defaults on first run); secrets and deployment
// overrides come from the environment, optionally seeded from a .env file.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"canvastrmnl/errors"
	"canvastrmnl/logger"
)

const (
	ModeServer = "server"
	ModeJob    = "job"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`
	Server  ServerConfig  `json:"server"`
	Store   StoreConfig   `json:"store"`
	Trmnl   TrmnlConfig   `json:"trmnl"`

	// Populated from the environment only; never written back to config.json.
	EncryptionKey string `json:"-"`
	Mode          string `json:"-"`
	Dev           bool   `json:"-"`
}

type LoggingConfig struct {
	UseLogFile bool   `json:"useLogFile"`
	LogPath    string `json:"logPath"`
}

type ServerConfig struct {
	Port int    `json:"port"`
	TLS  bool   `json:"tls"`
	Cert string `json:"cert"`
	Key  string `json:"key"`
}

// StoreConfig selects the consumer store. Driver is one of "redis",
// "postgres" or "sqlite".
type StoreConfig struct {
	Driver        string `json:"driver"`
	DatabaseURL   string `json:"databaseUrl"`
	RedisAddr     string `json:"redisAddr"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redisDb"`
}

type TrmnlConfig struct {
	BaseURL      string `json:"baseUrl"`
	ClientID     string `json:"-"`
	ClientSecret string `json:"-"`
}

// Default returns the configuration used when config.json is empty.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			UseLogFile: false,
			LogPath:    "logs",
		},
		Server: ServerConfig{
			Port: 3000,
		},
		Store: StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: "file:canvastrmnl.db",
			RedisAddr:   "localhost:6379",
		},
		Trmnl: TrmnlConfig{
			BaseURL: "https://usetrmnl.com",
		},
		Mode: ModeServer,
	}
}

// readSecret is swapped out in tests.
var readSecret = func(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Load reads .env (if present), then config.json at cfgPath, then applies
// environment overrides and validates the result.
func Load(cfgPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn(errors.NewError("config.Load", "could not read .env", err))
	}

	cfg, err := getConfig(cfgPath)
	if err != nil {
		logger.Error(errors.NewError("config.Load", "cannot read config file", err))
		logger.Warn("Resorting to default configuration settings...")
		cfg = Default()
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if cfg.EncryptionKey == "" {
		key, err := readSecret("Encryption key: ")
		if err != nil {
			return cfg, errors.NewError("config.Load", "could not read encryption key", err)
		}
		cfg.EncryptionKey = key
	}

	return cfg, cfg.Validate()
}

func getConfig(cfgPath string) (Config, error) {
	cfg := Default()

	jsonFile, err := os.OpenFile(cfgPath, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return cfg, errors.NewError("config.getConfig", "failed to open config.json", err)
	}

	b, err := io.ReadAll(jsonFile)
	if err != nil {
		jsonFile.Close()
		return cfg, errors.NewError("config.getConfig", "failed to read config.json", err)
	}

	err = jsonFile.Close()
	if err != nil {
		return cfg, errors.NewError("config.getConfig", "failed to close config.json", err)
	}

	if len(b) > 0 {
		err = json.Unmarshal(b, &cfg)
		if err != nil {
			return cfg, errors.NewError("config.getConfig", "failed to unmarshal config.json", err)
		}
	} else {
		logger.Info("Using default configuration settings. These can be edited in the config.json file")
	}

	rawJson, err := json.MarshalIndent(cfg, "", "\t")
	if err != nil {
		return cfg, errors.NewError("config.getConfig", "failed to marshal config.json", err)
	}

	err = os.WriteFile(cfgPath, rawJson, 0644)
	if err != nil {
		return cfg, errors.NewError("config.getConfig", "failed to write to config.json", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func applyEnv(cfg *Config) error {
	if port, ok := os.LookupEnv("PORT"); ok {
		n, err := strconv.Atoi(port)
		if err != nil {
			return errors.NewError("config.applyEnv", "PORT is not a number", errors.ErrInvalidPort)
		}
		cfg.Server.Port = n
	}

	if url, ok := os.LookupEnv("DATABASE_URL"); ok {
		cfg.Store.DatabaseURL = url
		if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
			cfg.Store.Driver = "postgres"
		} else {
			cfg.Store.Driver = "sqlite"
		}
	}
	if addr, ok := os.LookupEnv("REDIS_ADDR"); ok {
		cfg.Store.Driver = "redis"
		cfg.Store.RedisAddr = addr
	}
	cfg.Store.RedisPassword = getEnv("REDIS_PASSWORD", cfg.Store.RedisPassword)

	cfg.Trmnl.ClientID = getEnv("TRMNL_CLIENT_ID", cfg.Trmnl.ClientID)
	cfg.Trmnl.ClientSecret = getEnv("TRMNL_CLIENT_SECRET", cfg.Trmnl.ClientSecret)
	cfg.Trmnl.BaseURL = getEnv("TRMNL_BASE_URL", cfg.Trmnl.BaseURL)
	cfg.EncryptionKey = getEnv("ENCRYPTION_KEY", cfg.EncryptionKey)
	cfg.Mode = getEnv("APP_MODE", cfg.Mode)
	cfg.Dev = getEnv("APP_ENV", "production") == "development"
	return nil
}

// Validate reports the first setting that would stop the service from starting.
func (cfg Config) Validate() error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return errors.NewError("config", fmt.Sprintf("invalid port %d", cfg.Server.Port), errors.ErrInvalidPort)
	}
	if cfg.Mode != ModeServer && cfg.Mode != ModeJob {
		return errors.NewError("config", fmt.Sprintf("invalid mode %q", cfg.Mode), errors.ErrInvalidMode)
	}

	required := map[string]string{
		"TRMNL_CLIENT_ID":     cfg.Trmnl.ClientID,
		"TRMNL_CLIENT_SECRET": cfg.Trmnl.ClientSecret,
		"ENCRYPTION_KEY":      cfg.EncryptionKey,
	}
	for _, name := range []string{"TRMNL_CLIENT_ID", "TRMNL_CLIENT_SECRET", "ENCRYPTION_KEY"} {
		if required[name] == "" {
			return errors.NewError("config", name, errors.ErrMissingEnv)
		}
	}

	switch cfg.Store.Driver {
	case "redis", "postgres", "sqlite":
	default:
		return errors.NewError("config", fmt.Sprintf("unknown store driver %q", cfg.Store.Driver), nil)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (cfg Config) Addr() string {
	return ":" + strconv.Itoa(cfg.Server.Port)
}
