package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the kinds of the loaded pipeline",
	Args:  cobra.NoArgs,
	RunE:  runKinds,
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}

func runKinds(cmd *cobra.Command, args []string) error {
	bp, err := buildInstance()
	if err != nil {
		return err
	}
	registry := bp.Registry()
	for _, name := range registry.Names() {
		kind, err := registry.Get(name)
		if err != nil {
			return err
		}
		if kind.Parent() != nil {
			fmt.Printf("%s (depth %d, parent %s)\n", kind.Name(), kind.Depth(), kind.Parent().Name())
			continue
		}
		fmt.Printf("%s (depth %d)\n", kind.Name(), kind.Depth())
	}
	return nil
}
