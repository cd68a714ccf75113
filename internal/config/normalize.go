package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSeedbox(); err != nil {
		return err
	}
	c.normalizeSchedule()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeSeedbox() error {
	c.Seedbox.URL = strings.TrimRight(strings.TrimSpace(c.Seedbox.URL), "/")
	c.Seedbox.SSHHost = strings.TrimSpace(c.Seedbox.SSHHost)
	c.Seedbox.Tag = strings.TrimSpace(c.Seedbox.Tag)
	if c.Seedbox.Tag == "" {
		c.Seedbox.Tag = defaultSeedboxTag
	}
	if c.Seedbox.RequestTimeout <= 0 {
		c.Seedbox.RequestTimeout = defaultSeedboxTimeout
	}
	if strings.TrimSpace(c.Seedbox.SSHKey) != "" {
		expanded, err := expandPath(c.Seedbox.SSHKey)
		if err != nil {
			return fmt.Errorf("seedbox.ssh_key: %w", err)
		}
		c.Seedbox.SSHKey = expanded
	}
	return nil
}

func (c *Config) normalizeSchedule() {
	c.Schedule.PullCron = strings.TrimSpace(c.Schedule.PullCron)
	if c.Schedule.PullCron == "" {
		c.Schedule.PullCron = defaultPullCron
	}
	c.Schedule.TransferCron = strings.TrimSpace(c.Schedule.TransferCron)
	if c.Schedule.TransferCron == "" {
		c.Schedule.TransferCron = defaultTransferCron
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
