// Package main provides the entry point for the court booking agent CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "booking_agent",
	Short: "Court booking agent",
	Long:  "Books weekly court slots across multiple accounts the moment the venue releases its calendar, one isolated browser session per account.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
