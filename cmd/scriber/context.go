package main

import (
	"strings"
	"sync"

	"scriber/internal/api"
	"scriber/internal/config"
)

type commandContext struct {
	addressFlag *string
	tokenFlag   *string
	configFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(addressFlag, tokenFlag, configFlag *string) *commandContext {
	return &commandContext{
		addressFlag: addressFlag,
		tokenFlag:   tokenFlag,
		configFlag:  configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) address() (string, string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", "", err
	}
	address := cfg.Paths.APIBind
	token := cfg.Paths.APIToken
	if c.addressFlag != nil && strings.TrimSpace(*c.addressFlag) != "" {
		address = strings.TrimSpace(*c.addressFlag)
	}
	if c.tokenFlag != nil && strings.TrimSpace(*c.tokenFlag) != "" {
		token = strings.TrimSpace(*c.tokenFlag)
	}
	return address, token, nil
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	address, token, err := c.address()
	if err != nil {
		return err
	}
	client := api.NewClient(address, token)
	defer client.Close()
	return fn(client)
}
