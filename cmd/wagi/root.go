package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wagi",
	Short: "HTTP gateway that runs WebAssembly modules as request handlers",
	Long: `wagi - Serve WebAssembly modules as HTTP request handlers.

Modules speak CGI: the request arrives as environment variables and
stdin, and the response leaves on stdout as headers, a blank line, and
a body. Each request runs in a fresh sandbox with no filesystem or
network access beyond what the deployment file grants.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-dev", false, "Console encoding with human-readable timestamps")
	rootCmd.PersistentFlags().String("cache-dir", "", "Compilation cache directory (default: user cache dir)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable the on-disk compilation cache")
}
