package main

import (
	"os"

	"github.com/voltmesh/cso/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
