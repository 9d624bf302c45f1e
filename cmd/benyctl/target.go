package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benywifi/beny/internal/charger"
	"github.com/benywifi/beny/internal/config"
	"github.com/benywifi/beny/internal/discovery"
	"github.com/benywifi/beny/internal/logging"
	"github.com/benywifi/beny/internal/ui"
)

// target is the charger a command talks to, merged from the config file
// and the command line.
type target struct {
	Serial   string
	Name     string
	IP       string
	Port     int
	PIN      string
	Phases   int
	Interval time.Duration
}

func (t *target) Addr() string {
	return net.JoinHostPort(t.IP, strconv.Itoa(t.Port))
}

// Label names the charger for output
func (t *target) Label() string {
	switch {
	case t.Name != "":
		return t.Name
	case t.Serial != "":
		return t.Serial
	default:
		return t.Addr()
	}
}

// resolveTarget picks the charger from --ip, then --charger or the default
// registered charger, then a single charger found by discovery.
func resolveTarget(cmd *cobra.Command) (*target, error) {
	reg, err := config.LoadRegistry()
	if err != nil {
		return nil, err
	}

	var t *target
	switch {
	case flagIP != "":
		if net.ParseIP(flagIP).To4() == nil {
			return nil, fmt.Errorf("invalid --ip %q", flagIP)
		}
		t = &target{IP: flagIP}
		// Pick up the PIN and name if this address is registered
		if serial, c, err := reg.FindCharger(flagIP); err == nil {
			t = targetFromConfig(serial, c, reg.Preferences)
		}

	case chargerRef != "" || len(reg.Chargers) > 0:
		serial, c, err := reg.FindCharger(chargerRef)
		if err != nil {
			return nil, err
		}
		t = targetFromConfig(serial, c, reg.Preferences)

	default:
		d, err := discoverSingle(cmd, reg.Preferences)
		if err != nil {
			return nil, err
		}
		t = &target{Serial: d.Serial, IP: d.IP, Port: d.Port}
	}

	if cmd.Flags().Changed("port") {
		t.Port = flagPort
	}
	if cmd.Flags().Changed("pin") {
		t.PIN = flagPIN
	}
	if t.Port == 0 {
		t.Port = reg.Preferences.DefaultPort
	}
	if t.Port == 0 {
		t.Port = config.DefaultPort
	}
	if t.Interval == 0 {
		t.Interval = (&config.Charger{}).Interval(reg.Preferences)
	}
	return t, nil
}

func targetFromConfig(serial string, c *config.Charger, prefs *config.Preferences) *target {
	return &target{
		Serial:   serial,
		Name:     c.Name,
		IP:       c.IP,
		Port:     c.UDPPort(),
		PIN:      c.PIN,
		Phases:   c.Phases,
		Interval: c.Interval(prefs),
	}
}

// discoverSingle scans the network and returns the only charger found.
func discoverSingle(cmd *cobra.Command, prefs *config.Preferences) (*discovery.Device, error) {
	logging.Info("No charger configured, attempting discovery")

	scanner := discovery.NewScanner()
	if prefs.DiscoverTimeout > 0 {
		scanner.Timeout = time.Duration(prefs.DiscoverTimeout) * time.Second
	}
	devices, err := scanner.ScanForDevicesWithContext(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	switch len(devices) {
	case 0:
		return nil, errors.New("no chargers found. Use --ip to specify one, or 'benyctl add' to register one")
	case 1:
		return devices[0], nil
	default:
		return nil, fmt.Errorf("found %d chargers. Register them with 'benyctl add' or select one with --ip", len(devices))
	}
}

// newClient builds a client for t with the global timeout.
func newClient(t *target, opts ...charger.Option) *charger.Client {
	log := logging.Named("charger").With(zap.String("charger", t.Label()))
	base := []charger.Option{
		charger.WithLogger(log),
		charger.WithTimeout(timeout),
		charger.WithPIN(t.PIN),
	}
	return charger.NewClient(t.IP, t.Port, append(base, opts...)...)
}

// touchLastSeen records a successful exchange with a registered charger.
func touchLastSeen(t *target) {
	if t.Serial == "" {
		return
	}
	reg, err := config.LoadRegistry()
	if err != nil || reg.GetCharger(t.Serial) == nil {
		return
	}
	reg.UpdateChargerLastSeen(t.Serial, t.IP, t.Port)
	if err := reg.Save(); err != nil {
		logging.Warn("Failed to save config", zap.Error(err))
	}
}

// reportedError is an error whose details have already been printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// fail prints err as a failure box with troubleshooting tips in detailed
// format. In JSON format the error is returned for main to print.
func fail(cmd *cobra.Command, title string, err error) error {
	if outputFormat == formatJSON {
		return err
	}
	ui.NewPrinter(cmd.ErrOrStderr()).PrintChargerError(title, err)
	return &reportedError{err: err}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func printer(cmd *cobra.Command) *ui.Printer {
	return ui.NewPrinter(cmd.OutOrStdout())
}
