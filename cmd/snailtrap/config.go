package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	snailtrap "github.com/snailtrap/client-go"
)

// envConfig is the environment half of the CLI configuration. Flags
// override these values.
type envConfig struct {
	APIKey  string        `env:"SNAILTRAP_API_KEY"`
	BaseURL string        `env:"SNAILTRAP_BASE_URL"`
	Timeout time.Duration `env:"SNAILTRAP_TIMEOUT" envDefault:"30s"`
}

// rootOptions holds the persistent flag values shared by every
// subcommand.
type rootOptions struct {
	apiKey   string
	baseURL  string
	logLevel string
}

func loadEnvConfig() (envConfig, error) {
	// A .env file is optional; real environment variables win either
	// way because godotenv never overwrites existing keys.
	_ = godotenv.Load()

	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return envConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// newClient builds the SDK client from the environment and the
// persistent flags.
func newClient(root *rootOptions) (*snailtrap.Client, error) {
	cfg, err := loadEnvConfig()
	if err != nil {
		return nil, err
	}

	apiKey := cfg.APIKey
	if root.apiKey != "" {
		apiKey = root.apiKey
	}
	if apiKey == "" {
		return nil, errors.New("no API key: set SNAILTRAP_API_KEY or pass --api-key")
	}

	clientOpts := []snailtrap.Option{snailtrap.WithLogger(slog.Default())}

	baseURL := cfg.BaseURL
	if root.baseURL != "" {
		baseURL = root.baseURL
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, snailtrap.WithBaseURL(baseURL))
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, snailtrap.WithTimeout(cfg.Timeout))
	}

	return snailtrap.New(apiKey, clientOpts...)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
