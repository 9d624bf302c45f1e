package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/benywifi/beny/internal/config"
	"github.com/benywifi/beny/internal/discovery"
	"github.com/benywifi/beny/internal/logging"
	"github.com/benywifi/beny/internal/ui"
)

// Device command flags
var (
	scanWait     time.Duration
	scanModels   bool
	addName      string
	addPhases    int
	addDLB       bool
	addDefault   bool
	addInterval  int
	removeForced bool
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
}

// scanCmd discovers chargers on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Beny chargers on the network",
	Long: `Broadcast a discovery request and list every charger that answers.

Chargers reply with their serial number, IP address and UDP port. With
--model each charger is also asked for its model string.`,
	Example: `  # Scan for 3 seconds (default)
  benyctl scan

  # Longer scan, and ask each charger for its model
  benyctl scan --wait 10s --model

  # Ask one charger directly instead of broadcasting
  benyctl scan --ip 192.168.1.100`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanWait, "wait", discovery.DefaultScanTimeout, "How long to wait for replies")
	scanCmd.Flags().BoolVar(&scanModels, "model", false, "Request each charger's model")
}

func newScanner(cmd *cobra.Command) *discovery.Scanner {
	scanner := discovery.NewScanner()
	scanner.Timeout = scanWait
	if flagIP != "" {
		scanner.Target = flagIP
	}
	if cmd.Flags().Changed("port") {
		scanner.Port = flagPort
	}
	return scanner
}

func runScan(cmd *cobra.Command, args []string) error {
	scanner := newScanner(cmd)
	if outputFormat == formatDetailed {
		printer(cmd).PrintHeader("Charger discovery", "benyctl scan",
			ui.D("Target", net.JoinHostPort(scanner.Target, strconv.Itoa(scanner.Port))),
			ui.D("Wait", scanner.Timeout.String()))
	}

	devices, err := scanner.ScanForDevicesWithContext(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if scanModels {
		for _, d := range devices {
			client := newClient(&target{Serial: d.Serial, IP: d.IP, Port: d.Port, PIN: pinFor(d.Serial)})
			model, err := client.FetchModel(cmd.Context())
			if err != nil {
				logging.Warn("Model request failed", zap.String("serial", d.Serial), zap.Error(err))
				continue
			}
			d.Model = model
		}
	}

	if outputFormat == formatJSON {
		if devices == nil {
			devices = []*discovery.Device{}
		}
		return printJSON(cmd, devices)
	}

	p := printer(cmd)
	p.Println(ui.RenderDevices(devices, p.Width()))
	if len(devices) == 0 {
		p.Println(ui.NewWarningResult("No chargers answered",
			ui.D("Check", "the charger is powered on and joined to WiFi"),
			ui.D("Network", "this computer is on the charger's subnet"),
			ui.D("Try", "a longer --wait, or --ip to ask one charger"),
		).SetWidth(p.Width()).Render())
		return nil
	}
	p.Println("Use 'benyctl add <serial>' to register a charger")
	return nil
}

// pinFor returns the configured PIN for serial, or --pin.
func pinFor(serial string) string {
	if flagPIN != "" {
		return flagPIN
	}
	if reg, err := config.LoadRegistry(); err == nil {
		if c := reg.GetCharger(serial); c != nil {
			return c.PIN
		}
	}
	return ""
}

// addCmd registers a charger in the config file
var addCmd = &cobra.Command{
	Use:   "add [serial]",
	Short: "Discover a charger and save it to the config file",
	Long: `Find a charger by discovery and register it, so other commands can
reach it by name without --ip.

Without a serial the scan must find exactly one charger. The PIN is
prompted for when --pin is not given; leave it empty for chargers without
one. The model is requested and stored.`,
	Example: `  # Register the only charger on the network
  benyctl add --name garage

  # Register a specific charger as a three phase unit
  benyctl add 1234567890 --name garage --phases 3

  # Register a charger outside the broadcast domain
  benyctl add --ip 10.0.5.20 --pin 1234`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().DurationVar(&scanWait, "wait", discovery.DefaultScanTimeout, "How long to wait for replies")
	addCmd.Flags().StringVar(&addName, "name", "", "Friendly name")
	addCmd.Flags().IntVar(&addPhases, "phases", 0, "Supply phases (1 or 3); 0 infers from readings")
	addCmd.Flags().BoolVar(&addDLB, "dlb", false, "Dynamic load balancing is installed")
	addCmd.Flags().BoolVar(&addDefault, "default", false, "Make this the default charger")
	addCmd.Flags().IntVar(&addInterval, "poll-interval", 0, "Poll interval in seconds for watch and serve")
}

func runAdd(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	scanner := newScanner(cmd)
	var device *discovery.Device
	if len(args) == 1 {
		device, err = scanner.WaitForDeviceWithContext(cmd.Context(), args[0])
		if err != nil {
			return err
		}
	} else {
		devices, err := scanner.ScanForDevicesWithContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		switch len(devices) {
		case 0:
			return errors.New("no chargers found. Check the charger is online, or use --ip")
		case 1:
			device = devices[0]
		default:
			serials := make([]string, len(devices))
			for i, d := range devices {
				serials[i] = d.Serial
			}
			return fmt.Errorf("found %d chargers (%s). Pass the serial to add", len(devices), strings.Join(serials, ", "))
		}
	}

	pin := flagPIN
	if !cmd.Flags().Changed("pin") {
		if pin, err = promptPIN(cmd, device.Serial); err != nil {
			return err
		}
	}

	t := &target{Serial: device.Serial, Name: addName, IP: device.IP, Port: device.Port, PIN: pin}
	model, err := newClient(t).FetchModel(cmd.Context())
	if err != nil {
		return fail(cmd, "Charger found but did not answer a model request", err)
	}

	reg.UpdateChargerLastSeen(device.Serial, device.IP, device.Port)
	c := reg.GetCharger(device.Serial)
	c.PIN = pin
	c.Model = model
	c.DLB = addDLB
	if addName != "" {
		c.Name = addName
	}
	if cmd.Flags().Changed("phases") {
		c.Phases = addPhases
	}
	if cmd.Flags().Changed("poll-interval") {
		c.PollInterval = addInterval
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if addDefault || len(reg.Chargers) == 1 {
		reg.Preferences.DefaultCharger = device.Serial
	}
	if err := reg.Save(); err != nil {
		return err
	}

	if outputFormat == formatJSON {
		device.Model = model
		return printJSON(cmd, device)
	}
	printer(cmd).PrintSuccess("Charger registered",
		ui.D("Serial", device.Serial),
		ui.D("Name", c.DisplayName(device.Serial)),
		ui.D("Address", device.Addr()),
		ui.D("Model", model),
	)
	return nil
}

// promptPIN reads the PIN without echo. Without a terminal it returns "".
func promptPIN(cmd *cobra.Command, serial string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "PIN for charger %s (empty for none): ", serial)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read PIN: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// listCmd shows registered chargers
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List chargers in the config file",
	RunE:  runList,
}

// chargerEntry is one charger as listed; the PIN is never printed.
type chargerEntry struct {
	Serial   string    `json:"serial"`
	Name     string    `json:"name,omitempty"`
	Address  string    `json:"address"`
	Model    string    `json:"model,omitempty"`
	Phases   int       `json:"phases,omitempty"`
	DLB      bool      `json:"dlb"`
	HasPIN   bool      `json:"has_pin"`
	Default  bool      `json:"default"`
	LastSeen time.Time `json:"last_seen"`
}

func chargerEntries(reg *config.Registry) []chargerEntry {
	entries := make([]chargerEntry, 0, len(reg.Chargers))
	for _, serial := range reg.Serials() {
		c := reg.Chargers[serial]
		entries = append(entries, chargerEntry{
			Serial:   serial,
			Name:     c.Name,
			Address:  net.JoinHostPort(c.IP, strconv.Itoa(c.UDPPort())),
			Model:    c.Model,
			Phases:   c.Phases,
			DLB:      c.DLB,
			HasPIN:   c.PIN != "",
			Default:  reg.Preferences != nil && reg.Preferences.DefaultCharger == serial,
			LastSeen: c.LastSeen,
		})
	}
	return entries
}

func runList(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	entries := chargerEntries(reg)

	if outputFormat == formatJSON {
		return printJSON(cmd, entries)
	}

	p := printer(cmd)
	if len(entries) == 0 {
		p.Println("No chargers registered. Run 'benyctl scan' and 'benyctl add'.")
		return nil
	}

	title := lipgloss.NewStyle().Foreground(ui.PrimaryColor).Bold(true)
	for _, e := range entries {
		heading := e.Serial
		if e.Name != "" {
			heading = e.Name + "  (" + e.Serial + ")"
		}
		if e.Default {
			heading += "  [default]"
		}
		details := []ui.Detail{
			ui.D("Address", e.Address),
			ui.D("Model", orDash(e.Model)),
			ui.D("Phases", phasesLabel(e.Phases)),
			ui.D("PIN", map[bool]string{true: "set", false: "none"}[e.HasPIN]),
		}
		if !e.LastSeen.IsZero() {
			details = append(details, ui.D("Last seen", e.LastSeen.Format(time.DateTime)))
		}

		lines := append([]string{title.Render(heading)}, ui.RenderDetails(details, "")...)
		p.Println(ui.PanelStyle(p.Width()).Render(strings.Join(lines, "\n")))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func phasesLabel(n int) string {
	if n == 0 {
		return "auto"
	}
	return strconv.Itoa(n)
}

// removeCmd deletes a charger from the config file
var removeCmd = &cobra.Command{
	Use:   "remove <serial|name|ip>",
	Short: "Remove a charger from the config file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	removeCmd.Flags().BoolVarP(&removeForced, "yes", "y", false, "Do not ask for confirmation")
}

func runRemove(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	serial, c, err := reg.FindCharger(args[0])
	if err != nil {
		return err
	}

	if !removeForced {
		ok := ui.Confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "Remove charger "+c.DisplayName(serial),
			[]string{"Its PIN and settings will be deleted from " + configPathOrDefault()})
		if !ok {
			return nil
		}
	}

	reg.RemoveCharger(serial)
	if err := reg.Save(); err != nil {
		return err
	}
	if outputFormat == formatJSON {
		return printJSON(cmd, map[string]string{"removed": serial})
	}
	printer(cmd).PrintSuccess("Charger removed", ui.D("Serial", serial))
	return nil
}

func configPathOrDefault() string {
	if path, err := config.GetConfigPath(); err == nil {
		return path
	}
	return "the config file"
}
