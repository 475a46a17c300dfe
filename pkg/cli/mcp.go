package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/comind-network/cogindex/pkg/service/mcp"
	"github.com/comind-network/cogindex/pkg/usecase/query"
)

func mcpCommand() *cli.Command {
	var cfg config

	flags := append(globalFlags(&cfg), embedderFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the query tools over MCP on stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// Logs go to stderr; stdout carries the protocol.
			cfg.configureLogger()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			embedder, err := cfg.newEmbedder(ctx)
			if err != nil {
				return err
			}

			svc := mcp.New(query.New(repo, embedder), version)
			return svc.Run(ctx)
		},
	}
}
