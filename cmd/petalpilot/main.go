package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petalpilot/cli"
	"github.com/petal-labs/petalpilot/otel"
)

// Set via ldflags at build time.
var version = "dev"

var otelShutdown func(context.Context) error

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "petalpilot",
	Short: "PetalPilot browsing assistant CLI",
	Long:  "PetalPilot — an agent that interprets requests, drives browser sessions, and runs multi-step tool chains.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		endpoint, _ := cmd.Flags().GetString("otel-endpoint")
		shutdown, err := otel.Setup(cmd.Context(), "petalpilot", endpoint)
		if err != nil {
			return err
		}
		otelShutdown = shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if otelShutdown == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("otel-endpoint", "", "OTLP/HTTP trace endpoint (empty disables export)")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("petalpilot version %s\n", version))

	rootCmd.AddCommand(cli.NewChatCmd())
	rootCmd.AddCommand(cli.NewRunCmd())
	rootCmd.AddCommand(cli.NewToolsCmd())
}
