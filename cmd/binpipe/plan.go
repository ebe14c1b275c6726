package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan container=kind:path ...",
	Short: "Show which pipe produces what for a request, without running",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	bp, err := buildInstance()
	if err != nil {
		return err
	}
	request, err := bp.ParseRequest(args...)
	if err != nil {
		return err
	}

	entries := bp.Runner().Plan(request)
	pipes := bp.Runner().Pipes()
	for i, pipe := range pipes {
		fmt.Printf("%d. %s\n", i+1, pipe.GetName())
		if entries[i].Output.Empty() {
			fmt.Println("   produces: nothing (skipped)")
			continue
		}
		fmt.Printf("   produces: %s\n", entries[i].Output.String())
		fmt.Printf("   needs:    %s\n", entries[i].Input.String())
	}
	if len(entries) > 0 && !entries[0].Input.Empty() {
		fmt.Printf("must pre-exist: %s\n", entries[0].Input.String())
	}
	return nil
}
