package main

import (
	"fmt"
	"os"

	"github.com/projecteru2/sealvm/cmd"
	"github.com/projecteru2/sealvm/errdefs"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errdefs.ExitCode(err))
	}
}
