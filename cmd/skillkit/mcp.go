package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/mcpserver"
	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve skill activation as MCP tools over stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout exposing the tools
activate_skills, diagnose_skills, list_skills and get_skill.

Logs go to stderr so they never interleave with the protocol stream.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyWatchFlag(cmd)
		return runMCPCommand(cmd.Context())
	},
}

func init() {
	mcpCmd.Flags().Bool("watch", false, "Reload the registry when skill files change")
}

func runMCPCommand(ctx context.Context) error {
	// stdout carries the protocol
	logger.SetLogOutput(os.Stderr)
	presenter.SetQuiet(true)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, viper.GetViper())
	if err != nil {
		return err
	}

	s, err := mcpserver.New(rt.engine, rt.store)
	if err != nil {
		return errors.Wrap(err, "failed to create MCP server")
	}

	startWatcher(ctx, rt)

	return mcpserver.Serve(ctx, s, os.Stdin, os.Stdout)
}
