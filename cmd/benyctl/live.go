package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benywifi/beny/internal/charger"
	"github.com/benywifi/beny/internal/logging"
	"github.com/benywifi/beny/internal/metrics"
	"github.com/benywifi/beny/internal/poller"
	"github.com/benywifi/beny/internal/protocol"
	"github.com/benywifi/beny/internal/server"
	"github.com/benywifi/beny/internal/ui"
)

// Live command flags
var (
	pollInterval  time.Duration
	listenAddr    string
	enableMetrics bool
)

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
}

// pollerController drives a charger through its poller so the dashboard's
// commands never overlap a fetch.
type pollerController struct {
	poller *poller.Poller
	client *charger.Client
}

func (c *pollerController) Refresh(ctx context.Context) (*charger.Reading, error) {
	return c.poller.Refresh(ctx)
}

func (c *pollerController) ToggleCharging(ctx context.Context, cmd protocol.ChargerCommand) error {
	return c.poller.Do(ctx, func(ctx context.Context) error {
		return c.client.ToggleCharging(ctx, cmd)
	})
}

func intervalFor(cmd *cobra.Command, t *target) time.Duration {
	if cmd.Flags().Changed("interval") {
		return pollInterval
	}
	return t.Interval
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of the charger's values",
	Long: `Show the charger's values full screen, refreshed every poll interval.

Keys: r refreshes now, s starts charging, x stops charging, q quits.`,
	Example: `  # Watch the default charger
  benyctl watch

  # Refresh every 5 seconds
  benyctl watch --interval 5s`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&pollInterval, "interval", poller.DefaultInterval, "Poll interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}

	interval := intervalFor(cmd, t)
	client := newClient(t)
	p := poller.New(client, poller.WithInterval(interval), poller.WithLogger(logging.Named("poller")))

	model := ui.NewDashboardModel(cmd.Context(), &pollerController{poller: p, client: client},
		fmt.Sprintf("%s at %s", t.Label(), t.Addr()), t.Phases, interval)
	if err := ui.RunDashboard(cmd.Context(), model); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	if p.Last() != nil {
		touchLastSeen(t)
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the charger and serve readings over HTTP",
	Long: `Poll the charger on an interval and serve the latest reading.

Endpoints:
  GET /api/reading   latest reading as JSON
  GET /api/status    poll status and last error
  GET /ws            WebSocket push of every new reading
  GET /metrics       Prometheus metrics (disable with --metrics=false)

Stops gracefully on SIGINT or SIGTERM.`,
	Example: `  # Serve the default charger on port 8080
  benyctl serve

  # Listen on localhost only and poll every 10 seconds
  benyctl serve --listen 127.0.0.1:9090 --interval 10s --log-level info`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	serveCmd.Flags().DurationVar(&pollInterval, "interval", poller.DefaultInterval, "Poll interval")
	serveCmd.Flags().BoolVar(&enableMetrics, "metrics", true, "Serve Prometheus metrics on /metrics")
}

func runServe(cmd *cobra.Command, args []string) error {
	host, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return fmt.Errorf("invalid --listen address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid --listen port: %w", err)
	}

	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}

	var (
		m    *metrics.Metrics
		opts []charger.Option
	)
	if enableMetrics {
		m = metrics.New()
		opts = append(opts, charger.WithObserver(m))
	}
	client := newClient(t, opts...)
	p := poller.New(client, poller.WithInterval(intervalFor(cmd, t)), poller.WithLogger(logging.Named("poller")))

	logging.Info("Serving charger",
		zap.String("charger", t.Label()),
		zap.String("addr", t.Addr()),
		zap.String("listen", listenAddr),
	)
	if outputFormat == formatDetailed {
		printer(cmd).PrintHeader("Charger server", "benyctl serve",
			ui.D("Charger", t.Label()),
			ui.D("Address", t.Addr()),
			ui.D("Listen", listenAddr),
			ui.D("Interval", p.Interval().String()))
	}

	go func() {
		_ = p.Run(cmd.Context())
	}()

	srv := server.New(&server.Config{Host: host, Port: port}, p, m)
	return srv.Start(cmd.Context())
}
