package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"litrun/runtime"
)

var (
	evalConfigPath string
	evalMode       string
	evalFile       string
	evalKinds      []string
)

var evalCmd = &cobra.Command{
	Use:   "eval [snippet]",
	Short: "Evaluate a snippet against a local interpreter session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions(evalConfigPath)
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

		// In strict mode the diagnostic aborts the run instead of only
		// being printed.
		if opts.Strict {
			evaluator.SetFailureHandler(func(message string) {
				fmt.Fprintln(os.Stderr, message)
				os.Exit(1)
			})
		} else {
			evaluator.OnFailure(func(rec runtime.FailureRecord) {
				fmt.Fprintf(os.Stderr, "evaluation failed: %v\n", rec.Err)
			})
		}

		asExpression := evalMode == runtime.ModeExpression
		res := evaluator.Evaluate(args[0], asExpression, evalFile)
		if !res.Succeeded() {
			return fmt.Errorf("snippet evaluation failed")
		}

		kinds := evalKinds
		if len(kinds) == 0 {
			kinds = []string{"merged-output"}
		}
		for i, name := range kinds {
			kind, err := runtime.ParseEmbedKind(name)
			if err != nil {
				return err
			}
			for _, block := range evaluator.Format(res, kind, i) {
				fmt.Printf("--- %s (%s)\n%s\n", name, block.MediaKind, block.Content)
			}
		}
		return nil
	},
}

func init() {
	evalCmd.Flags().StringVarP(&evalConfigPath, "config", "c", "", "path to options file (YAML)")
	evalCmd.Flags().StringVarP(&evalMode, "mode", "m", runtime.ModeStatements, "evaluation mode: expression or statements")
	evalCmd.Flags().StringVarP(&evalFile, "file", "f", "", "originating file, sets the working directory")
	evalCmd.Flags().StringSliceVarP(&evalKinds, "kinds", "k", nil, "embed kinds to format (e.g. console-output,last-value)")
}
