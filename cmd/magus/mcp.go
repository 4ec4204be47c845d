package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/magus-names/magus/pkg/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start Magus as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			var history mcp.Historian
			if a.store != nil {
				history = a.store
			}
			srv := mcp.New(a.svc, history, version, a.logger)
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
