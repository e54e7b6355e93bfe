// Package main implements the storyreel command line tool, which renders
// scene scripts into videos in one shot without running the API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "storyreel",
	Short:        "Render scene scripts into videos",
	SilenceUsage: true,
}

func main() {
	// A .env file is optional; real environments set variables directly.
	_ = godotenv.Load()

	rootCmd.AddCommand(newRenderCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
