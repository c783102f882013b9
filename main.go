package main

import (
	"os"

	"github.com/qupid/dq-suggestions/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
