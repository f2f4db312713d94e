package main

import (
	"os"

	"github.com/glaciation-heu/timegraph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
