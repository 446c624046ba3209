package main

import (
	"os"

	"github.com/pfin-cycle-ledger/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
