package main

import (
	"context"
	"os"

	"github.com/asynkron/architerm/internal/cli"
)

// main starts the viewer; see internal/cli for flags and modes.
func main() {
	os.Exit(cli.Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
