package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"litrun/runtime"
	"litrun/runtime/engine/exprlang"
	"litrun/runtime/engine/risor"
)

var rootCmd = &cobra.Command{
	Use:   "litrun",
	Short: "litrun - embedded-snippet evaluation service",
	Long: `litrun evaluates code snippets against a long-lived interpreter session
and renders the results as document output blocks.

Run 'litrun serve' to expose the evaluator over HTTP, 'litrun eval' to
evaluate a snippet locally, or 'litrun submit' to send one to a running
service.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(submitCmd)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func loadOptions(path string) (runtime.Options, error) {
	if path == "" {
		return runtime.DefaultOptions(), nil
	}
	return runtime.LoadOptions(path)
}

func newSession(l *slog.Logger, engine string) (runtime.Session, error) {
	switch engine {
	case "risor":
		return risor.NewSession(l), nil
	case "expr":
		return exprlang.NewSession(l), nil
	}
	return nil, fmt.Errorf("unknown engine: %q", engine)
}
