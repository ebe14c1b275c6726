package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runOptions []string

var runCmd = &cobra.Command{
	Use:   "run container=kind:path ...",
	Short: "Produce the requested targets",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runOptions, "option", "o", nil, "Pipe option as name=value, repeatable")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	bp, err := buildInstance()
	if err != nil {
		return err
	}

	options := make(map[string]string, len(runOptions))
	for _, option := range runOptions {
		name, value, found := strings.Cut(option, "=")
		if !found {
			return fmt.Errorf("option %q: want name=value", option)
		}
		options[name] = value
	}

	request, err := bp.ParseRequest(args...)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if flagStateDir != "" {
		if err := bp.LoadState(ctx); err != nil {
			return err
		}
	}
	if err := bp.Run(request, options); err != nil {
		return err
	}
	if flagStateDir != "" {
		if err := bp.SaveState(ctx); err != nil {
			return err
		}
	}

	for _, containerName := range request.Names() {
		container, err := bp.Runner().State().Get(containerName)
		if err != nil {
			continue
		}
		fmt.Printf("%s: %s\n", containerName, container.Enumerate().String())
	}
	return nil
}
