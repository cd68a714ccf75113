package puller

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"courier/internal/config"
)

// Config holds the consumer-side settings. The puller is deliberately thin:
// it only needs to reach the relay's handoff API and its SSH endpoint.
type Config struct {
	APIURL      string `toml:"api_url"`
	APIKey      string `toml:"api_key"`
	SSHHost     string `toml:"ssh_host"`
	Destination string `toml:"destination"`
}

// DefaultConfigPath returns the default puller configuration file location.
func DefaultConfigPath() (string, error) {
	return config.ExpandPath("~/.config/courier/puller.toml")
}

// LoadConfig reads and validates a puller configuration file. Destination
// defaults to the current working directory.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open puller config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse puller config: %w", err)
	}

	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("puller config: api_url is required")
	}
	if strings.TrimSpace(cfg.SSHHost) == "" {
		return nil, fmt.Errorf("puller config: ssh_host is required")
	}

	if strings.TrimSpace(cfg.Destination) == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.Destination = cwd
	} else {
		expanded, err := config.ExpandPath(cfg.Destination)
		if err != nil {
			return nil, err
		}
		cfg.Destination = expanded
	}

	return &cfg, nil
}
