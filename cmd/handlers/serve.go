package handlers

import (
	"github.com/spf13/cobra"

	"papers/internal/logger"
	"papers/internal/mcpserver"
)

// NewServeCmd creates the MCP server command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the corpus and selections as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(true)
			if err != nil {
				return err
			}
			defer app.Close()

			logger.Info().Msg("serving MCP tools on stdio")
			server := mcpserver.New(app.Engine, app.Ingestor, app.Selections, app.Resolver)
			return server.Run(cmd.Context())
		},
	}
}
