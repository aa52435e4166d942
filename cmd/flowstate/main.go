package main

import (
	"os"

	"github.com/go-drift/flowstate/cmd/flowstate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
