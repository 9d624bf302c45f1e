package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benywifi/beny/internal/logging"
	"github.com/benywifi/beny/internal/protocol"
	"github.com/benywifi/beny/internal/ui"
)

var decodeType string

func init() {
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(encodeCmd)
	decodeCmd.Flags().StringVar(&decodeType, "type", "", "Decode as this message type instead of the header's message ID")
}

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a protocol frame",
	Long: `Decode a hex frame as received from a charger and print its fields.

The message type comes from the header's message ID unless --type is
given; SEND_SETTINGS frames must be decoded with --type send_settings.`,
	Example: `  # A SEND_VALUES frame
  benyctl decode 55aa1000237000000000e600e600e6000000005e06000000000000000f0000000003ca

  # A SEND_SETTINGS frame
  benyctl decode --type send_settings 55aa100022710000000000000000003e081e11051c`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

// decodedFrame is the JSON form of a decoded frame.
type decodedFrame struct {
	Type      string         `json:"type"`
	MessageID int            `json:"message_id"`
	Version   int            `json:"version"`
	Checksum  string         `json:"checksum"`
	Fields    map[string]any `json:"fields"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	frame := strings.TrimSpace(args[0])

	known := protocol.MessageUnknown
	if decodeType != "" {
		t, err := protocol.ParseMessageType(decodeType)
		if err != nil {
			return err
		}
		known = t
	}

	claimed, calculated, err := protocol.CompareChecksum(frame)
	if err != nil {
		return fmt.Errorf("malformed frame: %w", err)
	}
	if claimed != calculated {
		return fmt.Errorf("checksum mismatch: frame carries %02x, calculated %02x", claimed, calculated)
	}

	msg := protocol.NewDecoder(logging.Named("protocol")).Decode(frame, known)
	if msg == nil {
		return errors.New("frame dropped: unknown message ID, or a field is out of range (run with --log-level debug)")
	}

	if outputFormat == formatJSON {
		return printJSON(cmd, decodedFrame{
			Type:      msg.Type.String(),
			MessageID: msg.Header.MessageID,
			Version:   msg.Header.Version,
			Checksum:  fmt.Sprintf("%02x", claimed),
			Fields:    msg.Fields,
		})
	}

	details := []ui.Detail{
		ui.D("Message ID", fmt.Sprintf("%d (0x%02x)", msg.Header.MessageID, msg.Header.MessageID)),
		ui.D("Checksum", fmt.Sprintf("%02x ok", claimed)),
	}
	keys := make([]string, 0, len(msg.Fields))
	for k := range msg.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		details = append(details, ui.D(k, fmt.Sprint(msg.Fields[k])))
	}
	printer(cmd).PrintSuccess(msg.Type.String(), details...)
	return nil
}

var encodeCmd = &cobra.Command{
	Use:   "encode <type> [name=hex...]",
	Short: "Build a protocol frame",
	Long: `Fill a message template with hex parameter values and append the
checksum. Values are written into the frame as given, so they must already
be hex of the field's width. The global --pin is passed as the pin
parameter.

Run without parameters to list the ones a type expects.`,
	Example: `  # Request values
  benyctl encode request_data request_type=70

  # Start charging
  benyctl encode send_charger_command charger_command=01

  # Session limit of 30 kWh
  benyctl encode set_max_session_consumption maximum_consumption=1e`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

func runEncode(cmd *cobra.Command, args []string) error {
	names := make([]string, 0)
	for _, mt := range protocol.MessageTypes() {
		if mt.Direction() == protocol.DirectionClient {
			names = append(names, strings.ToLower(mt.String()))
		}
	}

	t, err := protocol.ParseMessageType(args[0])
	if err != nil {
		return fmt.Errorf("%w (known: %s)", err, strings.Join(names, ", "))
	}
	if t.Direction() != protocol.DirectionClient {
		return fmt.Errorf("%s is sent by the charger and cannot be encoded (known: %s)", t, strings.Join(names, ", "))
	}

	params, err := parseParams(args[1:])
	if err != nil {
		return err
	}
	for name := range params {
		if t.PlaceholderWidth(name) == 0 {
			return fmt.Errorf("%s has no parameter %q (expects: %s)", t, name, expectedParams(t))
		}
	}
	if err := protocol.ValidateParams(t, params); err != nil {
		return err
	}
	if flagPIN != "" {
		params["pin"] = flagPIN
	}

	frame, err := protocol.Build(t, params)
	var missing *protocol.PlaceholderError
	if errors.As(err, &missing) {
		return fmt.Errorf("%w (expects: %s)", err, expectedParams(t))
	}
	if err != nil {
		return err
	}

	if outputFormat == formatJSON {
		return printJSON(cmd, map[string]string{"type": t.String(), "frame": frame})
	}
	fmt.Fprintln(cmd.OutOrStdout(), frame)
	return nil
}

// expectedParams lists t's parameters with their width in hex digits.
func expectedParams(t protocol.MessageType) string {
	var parts []string
	for _, name := range protocol.Placeholders(t) {
		parts = append(parts, fmt.Sprintf("%s=<%d hex digits>", name, t.PlaceholderWidth(name)))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// parseParams turns name=value arguments into template parameters.
func parseParams(args []string) (protocol.Params, error) {
	params := protocol.Params{}
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q is not name=value", arg)
		}
		params[strings.ToLower(name)] = value
	}
	return params, nil
}
