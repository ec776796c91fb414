// Package core provides shared plumbing for the command handlers.
package core

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/projecteru2/sealvm/config"
	"github.com/projecteru2/sealvm/lifecycle"
)

// BaseHandler provides shared config access for all command handlers.
type BaseHandler struct {
	ConfProvider func() *config.Config
}

// Init returns the command context and validated config in one call.
func (h BaseHandler) Init(cmd *cobra.Command) (context.Context, *config.Config, error) {
	conf, err := h.Conf()
	if err != nil {
		return nil, nil, err
	}
	return CommandContext(cmd), conf, nil
}

// Coordinator builds the lifecycle coordinator for a command, after
// verifying the external binaries it will shell out to exist.
func (h BaseHandler) Coordinator(cmd *cobra.Command, deps ...string) (context.Context, *lifecycle.Coordinator, error) {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := lifecycle.CheckDependencies(ctx, deps...); err != nil {
		return nil, nil, err
	}
	coord, err := lifecycle.New(conf)
	if err != nil {
		return nil, nil, fmt.Errorf("init coordinator: %w", err)
	}
	return ctx, coord, nil
}

// Conf validates and returns the config. All handlers call this first.
func (h BaseHandler) Conf() (*config.Config, error) {
	if h.ConfProvider == nil {
		return nil, fmt.Errorf("config provider is nil")
	}
	conf := h.ConfProvider()
	if conf == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	return conf, nil
}

// CommandContext returns command context, falling back to Background.
func CommandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
