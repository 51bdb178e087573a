package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"fabline/internal/api"
	"fabline/internal/apiclient"
	"fabline/internal/config"
	"fabline/internal/logging"
	"fabline/internal/notifications"
	"fabline/internal/orderaccess"
	"fabline/internal/orders"
	"fabline/internal/workflow"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string
	actorFlag  *string
	roleFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag, actorFlag, roleFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
		actorFlag:  actorFlag,
		roleFlag:   roleFlag,
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
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) actor() workflow.Actor {
	actor := workflow.Actor{}
	if c.actorFlag != nil {
		actor.ID = strings.TrimSpace(*c.actorFlag)
	}
	if c.roleFlag != nil {
		actor.Role = strings.TrimSpace(*c.roleFlag)
	}
	return actor
}

func (c *commandContext) apiAddress(cfg *config.Config) string {
	if c.apiFlag != nil {
		if addr := strings.TrimSpace(*c.apiFlag); addr != "" {
			return addr
		}
	}
	if cfg != nil {
		return cfg.Paths.APIBind
	}
	return ""
}

// openSession yields order access through the daemon API when it answers,
// falling back to the store directly otherwise.
func (c *commandContext) openSession(ctx context.Context) (orderaccess.Session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return orderaccess.Session{}, err
	}

	return orderaccess.OpenWithFallback(ctx,
		func() *apiclient.Client {
			addr := c.apiAddress(cfg)
			if addr == "" {
				return nil
			}
			return apiclient.New(addr, cfg.Paths.APIToken)
		},
		func() (*api.WorkflowService, func() error, error) {
			store, err := orders.Open(cfg)
			if err != nil {
				return nil, nil, err
			}
			engine := workflow.NewEngine(cfg, store, logging.NewNop(), notifications.NewService(cfg))
			return api.NewWorkflowService(store, engine), store.Close, nil
		},
	)
}

// withSession runs fn against a freshly opened access session.
func (c *commandContext) withSession(cmd *cobra.Command, fn func(context.Context, orderaccess.Access) error) error {
	ctx := cmd.Context()
	session, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(ctx, session.Access)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
