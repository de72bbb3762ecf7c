package cli

import (
	"github.com/spf13/cobra"

	"github.com/ironsheep/image-preprocess/internal/config"
	"github.com/ironsheep/image-preprocess/internal/server"
)

func newServeCommand(opts *rootOptions, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline as MCP tools over stdio",
		Long: `Start an MCP (Model Context Protocol) server that reads JSON-RPC 2.0 requests
from stdin, one per line, and writes responses to stdout.

Tools: image_is_image, image_load, image_expand, image_preprocess.
The parameter file supplies the defaults that tool arguments override.

Examples:
  # Serve with default parameters
  image-preprocess serve

  # Serve with a parameter file and debug logging on stderr
  image-preprocess serve -p params.txt --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel)
			if err != nil {
				return fail("log level", err)
			}
			params, err := config.Load(opts.parameters, nil)
			if err != nil {
				return fail("parameters", err)
			}

			logger.WithField("version", info.Version).Info("serving MCP on stdio")
			srv := server.New(params, info.Version, logger)
			if err := srv.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return fail("serve", err)
			}
			return nil
		},
	}
}
