package main

import (
	"os"

	"github.com/spf13/cobra"
)

var pipesCmd = &cobra.Command{
	Use:   "pipes",
	Short: "Dump the pipe bindings and contracts of the loaded pipeline",
	Args:  cobra.NoArgs,
	RunE:  runPipes,
}

func init() {
	rootCmd.AddCommand(pipesCmd)
}

func runPipes(cmd *cobra.Command, args []string) error {
	bp, err := buildInstance()
	if err != nil {
		return err
	}
	for _, pipe := range bp.Runner().Pipes() {
		pipe.Dump(os.Stdout, 0)
	}
	return nil
}
