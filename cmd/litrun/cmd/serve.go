package cmd

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"litrun/runtime"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP evaluation service",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(serveConfigPath)
		if err != nil {
			return fmt.Errorf("error loading options: %w", err)
		}

		logger := newLogger()

		session, err := newSession(logger, opts.Engine)
		if err != nil {
			return err
		}

		evaluator, err := runtime.NewEvaluator(logger, session, opts)
		if err != nil {
			return fmt.Errorf("error initializing evaluator: %w", err)
		}

		g := gin.Default()
		runtime.NewHTTPHandler(logger, evaluator, g)

		logger.Info("Starting evaluation service",
			"listen", opts.Listen,
			"engine", opts.Engine,
			"strict", opts.Strict)

		return g.Run(opts.Listen)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "path to options file (YAML)")
}
