package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSeedbox(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		return errors.New("paths.storage_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	host, _, err := net.SplitHostPort(c.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("paths.api_bind: %w", err)
	}
	if c.Paths.APIToken == "" && !isLoopbackHost(host) {
		return errors.New("paths.api_token must be set when paths.api_bind is not loopback")
	}
	return nil
}

func (c *Config) validateSeedbox() error {
	if c.Seedbox.URL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Seedbox.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("seedbox.url %q is not a valid URL", c.Seedbox.URL)
	}
	return nil
}

func (c *Config) validateTransfer() error {
	if c.Transfer.SpeedLimitKBps < 0 {
		return errors.New("transfer.speed_limit_kbps must not be negative")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (console, json)", c.Logging.Format)
	}
	return nil
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") || host == "" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
