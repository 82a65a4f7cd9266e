package main

import (
	"fmt"
	"os"

	"github.com/kiranshivaraju/feedlens/cmd/feedlensctl/cmd"
)

// Set at build time with -ldflags.
var version = "dev"

func main() {
	cmd.SetVersion(version)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
