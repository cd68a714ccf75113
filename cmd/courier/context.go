package main

import (
	"strings"

	"courier/internal/config"
)

// commandContext carries flag values and a lazily loaded configuration shared
// by all subcommands.
type commandContext struct {
	apiURLFlag *string
	tokenFlag  *string
	configFlag *string

	cfg     *config.Config
	cfgPath string
}

func newCommandContext(apiURL, token, configPath *string) *commandContext {
	return &commandContext{
		apiURLFlag: apiURL,
		tokenFlag:  token,
		configFlag: configPath,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, path, _, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.cfgPath = path
	return cfg, nil
}

// client resolves the API endpoint from flags first and the configuration
// second.
func (c *commandContext) client() (*apiClient, error) {
	baseURL := strings.TrimSpace(*c.apiURLFlag)
	token := strings.TrimSpace(*c.tokenFlag)

	if baseURL == "" || token == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		if baseURL == "" {
			baseURL = "http://" + cfg.Paths.APIBind
		}
		if token == "" {
			token = cfg.Paths.APIToken
		}
	}

	return newAPIClient(baseURL, token), nil
}
