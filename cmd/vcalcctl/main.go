package main

import (
	"os"

	"github.com/udisondev/vcalc/cmd/vcalcctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
