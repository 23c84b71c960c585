// Package main is the entry point for the storylab CLI.
//
// Usage:
//
//	storylab [flags] <command> [subcommand] [args]
//
// Commands:
//
//	serve      - Run the HTTP and WebSocket server
//	story      - Create and show stories
//	continue   - Continue a story from the terminal
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/Hua914255/media/cmd/storylab/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
