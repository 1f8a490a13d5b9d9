package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"crate/internal/api"
	"crate/internal/config"
	"crate/internal/digging"
	"crate/internal/logging"
	"crate/internal/queue"
	"crate/internal/queueaccess"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) apiAddress() (string, error) {
	if c.apiFlag != nil {
		if bind := strings.TrimSpace(*c.apiFlag); bind != "" {
			return bind, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.Paths.APIBind, nil
}

// withAccess runs fn against the running server, or against the local
// database when no server answers.
func (c *commandContext) withAccess(cmdCtx context.Context, fn func(queueaccess.Access) error) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	bind, err := c.apiAddress()
	if err != nil {
		return err
	}
	session, err := queueaccess.OpenWithFallback(cmdCtx,
		func() (*api.Client, error) { return api.NewClient(bind) },
		c.openLocal,
	)
	if err != nil {
		return err
	}
	runErr := fn(session.Access)
	if closeErr := session.Close(); closeErr != nil && runErr == nil {
		runErr = fmt.Errorf("close local queue: %w", closeErr)
	}
	return runErr
}

func (c *commandContext) openLocal() (queueaccess.LocalService, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return queueaccess.LocalService{}, err
	}
	logger, err := logging.New(logging.Options{Level: "warn", Format: cfg.Logging.Format, OutputPaths: []string{"stderr"}})
	if err != nil {
		return queueaccess.LocalService{}, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return queueaccess.LocalService{}, err
	}
	svc, err := digging.NewFromConfig(cfg, store, logger)
	if err != nil {
		store.Close()
		return queueaccess.LocalService{}, err
	}
	return queueaccess.LocalService{Service: svc, Close: store.Close}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
