// Package main is the entry point of tgfb-relay.
package main

import (
	"log"
	"os"

	"tgfb-relay/cmd"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
