package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "studio",
		Short: "Portrait Studio: pick a photo, get a professional portrait",
		Long: `Portrait Studio hosts the single-photo upload widget on two surfaces:

  web   a browser page driven over a websocket
  bot   a Telegram chat driven by messages and inline buttons

Configuration is read from the environment (and a .env file when present).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		webCmd(),
		botCmd(),
		versionCmd(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
