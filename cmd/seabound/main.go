package main

import (
	"os"

	"github.com/seaboundhq/seabound/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
