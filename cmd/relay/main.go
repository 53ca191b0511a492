// Package main is the entry point for the vitals-relay server binary.
//
// Usage:
//
//	vitals-relay serve -c config.yaml # Start the relay
//	vitals-relay version              # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "vitals-relay",
	Short: "Real-time relay for field-unit vitals, alerts and positions",
	Long: `vitals-relay accepts websocket connections from field units and
monitoring consoles, classifies every vitals transmission, and fans
admitted events out to the consoles in real time.

Quick start:
  1. Create a config file (config.yaml)
  2. Run: vitals-relay serve -c config.yaml
  3. Point field units and consoles at ws://host:port/ws`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vitals-relay %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
