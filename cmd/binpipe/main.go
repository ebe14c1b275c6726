// binpipe is the CLI for running declarative analysis pipelines.
package main

import (
	"os"
)

func main() {
	os.Exit(Execute())
}
