package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/laughingman-dev/binpipe"
	"github.com/laughingman-dev/binpipe/src/example"
	"github.com/laughingman-dev/binpipe/src/system/archivist"
	"github.com/laughingman-dev/binpipe/src/system/pipeline"
)

var (
	flagPipeline string
	flagStateDir string
	flagVerbose  bool
	flagDebug    bool
	flagStrict   bool
	flagHistory  bool
)

var rootCmd = &cobra.Command{
	Use:   "binpipe",
	Short: "Run declarative binary analysis pipelines",
	Long: `binpipe loads a TOML pipeline definition and produces the requested
targets, executing only the pipes the request actually needs.

Targets are addressed as container=kind:path, for example
lifted=lifted-function:main or lifted=lifted-function:* for every
instance of a kind.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagPipeline, "pipeline", "p", "", "Pipeline definition file (TOML)")
	rootCmd.PersistentFlags().StringVar(&flagStateDir, "state-dir", "", "Directory for persisted containers and invalidation metadata")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Info level logging")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Debug level logging")
	rootCmd.PersistentFlags().BoolVar(&flagStrict, "strict", false, "Fail instead of skipping unsatisfiable pipes")
	rootCmd.PersistentFlags().BoolVar(&flagHistory, "history", false, "Record run history")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func logLevel() int {
	switch {
	case flagDebug:
		return archivist.LEVEL_DEBUG
	case flagVerbose:
		return archivist.LEVEL_INFO
	}
	return archivist.LEVEL_WARNING
}

// buildInstance assembles an instance with the built-in pipe set and the
// definition named by --pipeline.
func buildInstance() (*binpipe.Binpipe, error) {
	if flagPipeline == "" {
		return nil, fmt.Errorf("no pipeline definition given, use --pipeline")
	}
	bp := binpipe.New(binpipe.Settings{
		Ident:      "binpipe",
		Logger:     log.New(os.Stderr, "", 0),
		LogLevel:   logLevel(),
		DebugLevel: archivist.DEBUG_LEVEL_DETAIL,
		History:    flagHistory,
		Strict:     flagStrict,
		StateDir:   flagStateDir,
	})
	bp.RegisterPipes(example.Factories())
	bp.RegisterContainerType(example.ContainerTypeFunctions, func() pipeline.Container {
		return pipeline.NewPayloadContainer(example.ContainerTypeFunctions)
	})
	bp.AddGlobal(example.NewModel())
	if err := bp.LoadFile(flagPipeline); err != nil {
		return nil, err
	}
	return bp, nil
}
