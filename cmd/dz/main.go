package main

import (
	"os"

	"github.com/dragonbytelabs/dz/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
