package main

import (
	"os"

	"github.com/eculver/environment-url/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
