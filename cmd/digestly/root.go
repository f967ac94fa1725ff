package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "digestly",
	Short: "Personalized developer newsletter pipeline",
	Long: "Digestly collects content from GitHub, Hacker News, RSS feeds and web\n" +
		"search, curates it per recipient, and delivers a personalized newsletter.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recipientsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
