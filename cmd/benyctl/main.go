// Benyctl talks to Beny WiFi EV chargers over their local UDP protocol.
//
// It discovers chargers on the network, reads live values, starts and
// stops charging, manages the charging timer, weekly schedule and
// consumption limits, and can serve readings over HTTP for dashboards and
// Prometheus.
//
// Usage:
//
//	benyctl [command] [flags]
//
// See 'benyctl --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/benywifi/beny/internal/charger"
	"github.com/benywifi/beny/internal/logging"
	"github.com/benywifi/beny/internal/version"
)

// Global flags
var (
	chargerRef   string
	flagIP       string
	flagPort     int
	flagPIN      string
	logLevel     string
	logFile      string
	outputFormat string
	timeout      time.Duration
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "benyctl",
	Short: "Beny WiFi Charger Utility",
	Long: `A command line utility for Beny WiFi EV chargers.

Talks to chargers directly over the local network (UDP port 3333). No
cloud account is needed; chargers protected by a PIN need it configured
with 'benyctl add' or passed with --pin.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.InitializeWithFile(logLevel, logging.FileOptions{Path: logFile}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		switch outputFormat {
		case formatDetailed, formatJSON:
			return nil
		default:
			return fmt.Errorf("unknown output format %q (use detailed or json)", outputFormat)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

const (
	formatDetailed = "detailed"
	formatJSON     = "json"
)

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&chargerRef, "charger", "c", "", "Registered charger (serial, name or IP)")
	flags.StringVar(&flagIP, "ip", "", "Charger IP address (skips the config file)")
	flags.IntVar(&flagPort, "port", 0, "Charger UDP port (default 3333)")
	flags.StringVar(&flagPIN, "pin", "", "Charger PIN")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	flags.StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")
	flags.StringVar(&outputFormat, "format", formatDetailed, "Output format (detailed, json)")
	flags.DurationVar(&timeout, "timeout", charger.DefaultTimeout, "Time to wait for each charger response")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat == formatJSON {
			return printJSON(cmd, version.Get())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "benyctl %s\n", version.Full())
		return nil
	},
}
