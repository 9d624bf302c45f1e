package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/benywifi/beny/internal/charger"
	"github.com/benywifi/beny/internal/config"
	"github.com/benywifi/beny/internal/protocol"
)

const (
	requestValues  = "55aa10000b0000cb347089"
	commandStart   = "55aa10000c0000cb34060121"
	replyCharging  = "55aa1000237000000000e600e600e6000000005e06000000000000000f0000000003ca"
	replyUnplugged = "55aa1000237000000000e600e600e6000000005e01000000000000000f0000000003c5"
	replyAck       = "55aa1000080000cb3416"
)

// resetFlags restores every flag to its default so runs do not leak into
// each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// isolateConfig points the registry at an empty temp dir.
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if _, err := config.ReloadRegistry(); err != nil {
		t.Fatalf("ReloadRegistry() error = %v", err)
	}
	return filepath.Join(dir, "beny", "config.yaml")
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// fakeCharger answers datagrams on loopback.
func fakeCharger(t *testing.T, reply func(req string) string) (port string, received func() []string) {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	var (
		mu   sync.Mutex
		reqs []string
	)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			req := string(buf[:n])
			mu.Lock()
			reqs = append(reqs, req)
			mu.Unlock()
			if resp := reply(req); resp != "" {
				_, _ = conn.WriteTo([]byte(resp), addr)
			}
		}
	}()

	return strconv.Itoa(conn.LocalAddr().(*net.UDPAddr).Port), func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), reqs...)
	}
}

func always(frame string) func(string) string {
	return func(string) string { return frame }
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]string
		wantErr bool
	}{
		{"empty", nil, map[string]string{}, false},
		{"one", []string{"charger_command=01"}, map[string]string{"charger_command": "01"}, false},
		{"lowercases name", []string{"Request_Type=70"}, map[string]string{"request_type": "70"}, false},
		{"value with equals", []string{"a=b=c"}, map[string]string{"a": "b=c"}, false},
		{"missing equals", []string{"charger_command"}, nil, true},
		{"empty name", []string{"=01"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseParams() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("parseParams()[%s] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestEncodeCommand(t *testing.T) {
	isolateConfig(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"encode", "send_charger_command", "charger_command=01"}, commandStart},
		{[]string{"encode", "REQUEST-DATA", "request_type=70"}, requestValues},
		{[]string{"encode", "set_max_session_consumption", "maximum_consumption=1e"}, "55aa10000c0000cb34741eac"},
	}
	for _, tt := range tests {
		out, _, err := execute(t, tt.args...)
		if err != nil {
			t.Fatalf("%v: error = %v", tt.args, err)
		}
		if strings.TrimSpace(out) != tt.want {
			t.Errorf("%v = %q, want %q", tt.args, strings.TrimSpace(out), tt.want)
		}
	}
}

func TestEncodeCommand_Errors(t *testing.T) {
	isolateConfig(t)

	if _, _, err := execute(t, "encode", "send_charger_command"); err == nil || !strings.Contains(err.Error(), "charger_command") {
		t.Errorf("missing parameter error = %v", err)
	}
	if _, _, err := execute(t, "encode", "bogus"); err == nil || !strings.Contains(err.Error(), "known:") {
		t.Errorf("unknown type error = %v", err)
	}
	if _, _, err := execute(t, "encode", "send_values"); err == nil || !strings.Contains(err.Error(), "sent by the charger") {
		t.Errorf("server type error = %v", err)
	}
	if _, _, err := execute(t, "encode", "request_data", "requst_type=70"); err == nil || !strings.Contains(err.Error(), "request_type=<2 hex digits>") {
		t.Errorf("unknown parameter error = %v", err)
	}
}

func TestEncodeCommand_ParamWidth(t *testing.T) {
	isolateConfig(t)

	tests := [][]string{
		{"encode", "request_data", "request_type=7089"},
		{"encode", "request_data", "request_type=[checksum]"},
		{"encode", "set_max_monthly_consumption", "maximum_consumption=1e"},
		{"encode", "send_charger_command", "charger_command=zz"},
	}
	for _, args := range tests {
		out, _, err := execute(t, args...)
		var pe *protocol.ParamError
		if !errors.As(err, &pe) {
			t.Errorf("%v: error = %v, want *protocol.ParamError", args, err)
		}
		if out != "" {
			t.Errorf("%v printed %q, want no frame", args, out)
		}
	}
}

func TestDecodeCommand(t *testing.T) {
	isolateConfig(t)

	out, _, err := execute(t, "decode", replyCharging)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	for _, want := range []string{"SEND_VALUES", "CHARGING", "Message ID"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDecodeCommand_JSON(t *testing.T) {
	isolateConfig(t)

	out, _, err := execute(t, "decode", "--format", "json", replyCharging)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	var got struct {
		Type      string         `json:"type"`
		MessageID int            `json:"message_id"`
		Fields    map[string]any `json:"fields"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if got.Type != "SEND_VALUES" || got.MessageID != 35 {
		t.Errorf("type = %s id = %d, want SEND_VALUES 35", got.Type, got.MessageID)
	}
	if got.Fields["state"] != "CHARGING" {
		t.Errorf("state = %v, want CHARGING", got.Fields["state"])
	}
}

func TestDecodeCommand_Settings(t *testing.T) {
	isolateConfig(t)

	out, _, err := execute(t, "decode", "--type", "send_settings", "55aa100022710000000000000000003e081e11051c")
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if !strings.Contains(out, "SEND_SETTINGS") {
		t.Errorf("output:\n%s", out)
	}
}

func TestDecodeCommand_BadChecksum(t *testing.T) {
	isolateConfig(t)

	bad := replyCharging[:len(replyCharging)-2] + "00"
	_, _, err := execute(t, "decode", bad)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("Expected checksum mismatch, got %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	isolateConfig(t)
	port, received := fakeCharger(t, always(replyCharging))

	out, _, err := execute(t, "status", "--ip", "127.0.0.1", "--port", port, "--timeout", "2s")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "CHARGING") {
		t.Errorf("output missing state:\n%s", out)
	}
	if reqs := received(); len(reqs) != 1 || reqs[0] != requestValues {
		t.Errorf("requests = %v, want [%s]", reqs, requestValues)
	}
}

func TestStatusCommand_JSON(t *testing.T) {
	isolateConfig(t)
	port, _ := fakeCharger(t, always(replyCharging))

	out, _, err := execute(t, "status", "--ip", "127.0.0.1", "--port", port, "--format", "json")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if got["charger_state"] != "charging" {
		t.Errorf("charger_state = %v, want charging", got["charger_state"])
	}
	if got["timer_start"] != charger.NotSet {
		t.Errorf("timer_start = %v, want not_set", got["timer_start"])
	}
}

func TestStartCommand(t *testing.T) {
	isolateConfig(t)
	port, received := fakeCharger(t, func(req string) string {
		if req == requestValues {
			return replyCharging
		}
		return replyAck
	})

	out, _, err := execute(t, "start", "--ip", "127.0.0.1", "--port", port, "--timeout", "2s")
	if err != nil {
		t.Fatalf("start error = %v", err)
	}
	if !strings.Contains(out, "Charging started") {
		t.Errorf("output:\n%s", out)
	}
	reqs := received()
	if len(reqs) != 2 || reqs[1] != commandStart {
		t.Errorf("requests = %v, want state fetch then %s", reqs, commandStart)
	}
}

func TestStartCommand_Unplugged(t *testing.T) {
	isolateConfig(t)
	port, received := fakeCharger(t, always(replyUnplugged))

	_, stderr, err := execute(t, "start", "--ip", "127.0.0.1", "--port", port, "--timeout", "2s")
	if !errors.Is(err, charger.ErrChargerUnplugged) {
		t.Fatalf("start error = %v, want ErrChargerUnplugged", err)
	}
	var reported *reportedError
	if !errors.As(err, &reported) {
		t.Error("Expected the error to be reported in detailed format")
	}
	if !strings.Contains(stderr, "Charging not started") {
		t.Errorf("stderr missing failure title:\n%s", stderr)
	}
	if reqs := received(); len(reqs) != 1 {
		t.Errorf("requests = %v, want only the state fetch", reqs)
	}
}

func TestSetLimitCommand_Validation(t *testing.T) {
	isolateConfig(t)

	_, _, err := execute(t, "set-max-session", "300", "--ip", "127.0.0.1")
	if !charger.IsValidationError(err) {
		t.Errorf("set-max-session 300 error = %v, want validation error", err)
	}
	if _, _, err := execute(t, "set-max-monthly", "lots", "--ip", "127.0.0.1"); err == nil {
		t.Error("Expected error for non-numeric kWh")
	}
}

func TestSetTimerCommand_InvalidTime(t *testing.T) {
	isolateConfig(t)

	if _, _, err := execute(t, "set-timer", "25:00", "--ip", "127.0.0.1"); err == nil {
		t.Error("Expected error for 25:00")
	}
}

func TestResolveTarget_Registry(t *testing.T) {
	path := isolateConfig(t)

	reg := config.NewRegistry()
	reg.UpdateChargerLastSeen("1234567890", "192.168.1.100", 3333)
	reg.SetChargerName("1234567890", "garage")
	c := reg.GetCharger("1234567890")
	c.PIN = "4321"
	c.Phases = 3
	if err := reg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	if _, err := config.ReloadRegistry(); err != nil {
		t.Fatalf("ReloadRegistry() error = %v", err)
	}

	resetFlags(rootCmd)
	if err := statusCmd.ParseFlags([]string{"--charger", "garage"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	got, err := resolveTarget(statusCmd)
	if err != nil {
		t.Fatalf("resolveTarget() error = %v", err)
	}
	if got.Serial != "1234567890" || got.IP != "192.168.1.100" || got.PIN != "4321" || got.Phases != 3 {
		t.Errorf("resolveTarget() = %+v", got)
	}
	if got.Port != 3333 {
		t.Errorf("Port = %d, want 3333", got.Port)
	}
	if got.Label() != "garage" {
		t.Errorf("Label() = %q, want garage", got.Label())
	}
}

func TestResolveTarget_InvalidIP(t *testing.T) {
	isolateConfig(t)

	_, _, err := execute(t, "status", "--ip", "not-an-ip")
	if err == nil || !strings.Contains(err.Error(), "invalid --ip") {
		t.Errorf("Expected invalid --ip error, got %v", err)
	}
}

func TestListCommand_JSONHidesPIN(t *testing.T) {
	path := isolateConfig(t)

	reg := config.NewRegistry()
	reg.UpdateChargerLastSeen("1234567890", "192.168.1.100", 3333)
	reg.GetCharger("1234567890").PIN = "4321"
	reg.Preferences.DefaultCharger = "1234567890"
	if err := reg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	if _, err := config.ReloadRegistry(); err != nil {
		t.Fatalf("ReloadRegistry() error = %v", err)
	}

	out, _, err := execute(t, "list", "--format", "json")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if strings.Contains(out, "4321") {
		t.Error("list output contains the PIN")
	}
	var entries []chargerEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(entries) != 1 || !entries[0].HasPIN || !entries[0].Default {
		t.Errorf("entries = %+v", entries)
	}
}

func TestRemoveCommand(t *testing.T) {
	path := isolateConfig(t)

	reg := config.NewRegistry()
	reg.UpdateChargerLastSeen("1234567890", "192.168.1.100", 3333)
	if err := reg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	if _, err := config.ReloadRegistry(); err != nil {
		t.Fatalf("ReloadRegistry() error = %v", err)
	}

	// No "yes" on stdin, nothing removed
	if _, _, err := execute(t, "remove", "1234567890"); err != nil {
		t.Fatalf("remove error = %v", err)
	}
	if reg, _ := config.LoadRegistry(); reg.GetCharger("1234567890") == nil {
		t.Fatal("charger removed without confirmation")
	}

	if _, _, err := execute(t, "remove", "1234567890", "--yes"); err != nil {
		t.Fatalf("remove --yes error = %v", err)
	}
	reloaded, err := config.ReloadRegistry()
	if err != nil {
		t.Fatalf("ReloadRegistry() error = %v", err)
	}
	if reloaded.GetCharger("1234567890") != nil {
		t.Error("charger still registered after remove --yes")
	}
}

func TestUnknownFormat(t *testing.T) {
	isolateConfig(t)

	if _, _, err := execute(t, "version", "--format", "yaml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	isolateConfig(t)

	out, _, err := execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if got["version"] == "" || got["commit"] == "" {
		t.Errorf("version output = %v", got)
	}
}
