package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"litrun/client"
	"litrun/runtime"
)

var (
	submitAddr  string
	submitMode  string
	submitFile  string
	submitKinds []string
)

var submitCmd = &cobra.Command{
	Use:   "submit [snippet]",
	Short: "Submit a snippet to a running evaluation service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(client.Config{BaseURL: submitAddr})
		if err != nil {
			return fmt.Errorf("error creating client: %w", err)
		}

		resp, err := c.Eval(cmd.Context(), runtime.EvalRequest{
			Snippet: args[0],
			Mode:    submitMode,
			File:    submitFile,
			Kinds:   submitKinds,
		})
		if err != nil {
			return err
		}

		if !resp.Success {
			return fmt.Errorf("snippet evaluation failed: %v", resp.Failure)
		}
		for _, block := range resp.Blocks {
			fmt.Printf("--- %s\n%s\n", block.MediaKind, block.Content)
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVarP(&submitAddr, "addr", "a", "http://localhost:8080", "base URL of the evaluation service")
	submitCmd.Flags().StringVarP(&submitMode, "mode", "m", runtime.ModeStatements, "evaluation mode: expression or statements")
	submitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "originating file, sets the working directory")
	submitCmd.Flags().StringSliceVarP(&submitKinds, "kinds", "k", nil, "embed kinds to format")
}
