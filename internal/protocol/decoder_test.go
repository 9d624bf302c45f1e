package protocol

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Captured frames. The standby, timer and power variants differ from the
// charging sample only in the bytes named and the recomputed checksum.
const (
	sampleValuesCharging = "55aa1000237000000000e600e600e6000000005e06000000000000000f0000000003ca"
	sampleValuesStandby  = "55aa1000237000000000e600e600e6000000005e02000000000000000f0000000003c6"
	sampleValuesTimer    = "55aa1000237000000000e600e600e6000000005e0203080000071e000f0000000003f6"
	sampleValuesPower    = "55aa1000237000000000e600e600e6006404d25e06000000000000000f000000000304"
	sampleHandshake      = "55aa10001103499602D2c0a801640d05b5"
	sampleModel          = "55aa100020044243502d4154314e2d4c202002"
	sampleSettings       = "55aa100022710000000000000000003e081e11051c"
	sampleAck            = "55aa1000080000cb3416"
)

func TestDecode_SendValues(t *testing.T) {
	msg := Decode(sampleValuesCharging, MessageUnknown)
	if msg == nil {
		t.Fatal("Decode() = nil, want SEND_VALUES message")
	}
	if msg.Type != MessageSendValues {
		t.Errorf("Type = %v, want %v", msg.Type, MessageSendValues)
	}
	if msg.Header.MessageID != 35 {
		t.Errorf("Header.MessageID = %d, want 35", msg.Header.MessageID)
	}
	if msg.Header.Tag != 0x55aa {
		t.Errorf("Header.Tag = 0x%04x, want 0x55aa", msg.Header.Tag)
	}
	if msg.Header.Version != 0x10 {
		t.Errorf("Header.Version = 0x%02x, want 0x10", msg.Header.Version)
	}

	if rt, _ := Value[RequestType](msg, "request_type"); rt != RequestValues {
		t.Errorf("request_type = %v, want %v", rt, RequestValues)
	}
	if st, _ := Value[ChargerState](msg, "state"); st != StateCharging {
		t.Errorf("state = %v, want %v", st, StateCharging)
	}
	if ts, _ := Value[TimerState](msg, "timer_state"); ts != TimerUnset {
		t.Errorf("timer_state = %v, want %v", ts, TimerUnset)
	}

	ints := map[string]int{
		"voltage1":                    230,
		"voltage2":                    230,
		"voltage3":                    230,
		"current1":                    0,
		"current2":                    0,
		"current3":                    0,
		"max_current":                 15,
		"maximum_session_consumption": 0,
		"timer_start_h":               0,
		"timer_end_min":               0,
	}
	for name, want := range ints {
		if got := msg.Int(name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
	if got := msg.Float("power"); got != 0 {
		t.Errorf("power = %v, want 0", got)
	}
	if got := msg.Float("total_kwh"); got != 0 {
		t.Errorf("total_kwh = %v, want 0", got)
	}
}

func TestDecode_ChargerStates(t *testing.T) {
	tests := []struct {
		frame string
		want  ChargerState
	}{
		{sampleValuesCharging, StateCharging},
		{sampleValuesStandby, StateStandby},
	}
	for _, tt := range tests {
		msg := Decode(tt.frame, MessageUnknown)
		if msg == nil {
			t.Fatalf("Decode(%s) = nil", tt.frame)
		}
		if got, _ := Value[ChargerState](msg, "state"); got != tt.want {
			t.Errorf("Decode(%s) state = %v, want %v", tt.frame, got, tt.want)
		}
	}
}

func TestDecode_FixedPoint(t *testing.T) {
	msg := Decode(sampleValuesPower, MessageSendValues)
	if msg == nil {
		t.Fatal("Decode() = nil")
	}
	if got := msg.Float("power"); got != 10.0 {
		t.Errorf("power = %v, want 10.0", got)
	}
	if got := msg.Float("total_kwh"); got != 123.4 {
		t.Errorf("total_kwh = %v, want 123.4", got)
	}
}

func TestDecode_Timer(t *testing.T) {
	msg := Decode(sampleValuesTimer, MessageUnknown)
	if msg == nil {
		t.Fatal("Decode() = nil")
	}
	if ts, _ := Value[TimerState](msg, "timer_state"); ts != TimerStartEndTime {
		t.Errorf("timer_state = %v, want %v", ts, TimerStartEndTime)
	}
	want := map[string]int{"timer_start_h": 8, "timer_start_min": 0, "timer_end_h": 7, "timer_end_min": 30}
	for name, v := range want {
		if got := msg.Int(name); got != v {
			t.Errorf("%s = %d, want %d", name, got, v)
		}
	}
}

func TestDecode_Handshake(t *testing.T) {
	msg := Decode(sampleHandshake, MessageUnknown)
	if msg == nil {
		t.Fatal("Decode() = nil, want HANDSHAKE")
	}
	if msg.Type != MessageHandshake {
		t.Errorf("Type = %v, want %v", msg.Type, MessageHandshake)
	}
	if got := msg.Int("serial"); got != 1234567890 {
		t.Errorf("serial = %d, want 1234567890", got)
	}
	if got := msg.Str("ip"); got != "192.168.1.100" {
		t.Errorf("ip = %q, want 192.168.1.100", got)
	}
	if got := msg.Int("port"); got != 3333 {
		t.Errorf("port = %d, want 3333", got)
	}
}

func TestDecode_Model(t *testing.T) {
	msg := Decode(sampleModel, MessageUnknown)
	if msg == nil {
		t.Fatal("Decode() = nil, want SEND_MODEL")
	}
	if got := msg.Str("model"); got != "BCP-AT1N-L" {
		t.Errorf("model = %q, want BCP-AT1N-L", got)
	}
	if rt, _ := Value[RequestType](msg, "request_type"); rt != RequestModel {
		t.Errorf("request_type = %v, want %v", rt, RequestModel)
	}
}

func TestDecode_Settings(t *testing.T) {
	// SEND_SETTINGS has no dispatch ID, so the type must be given.
	if msg := Decode(sampleSettings, MessageUnknown); msg != nil {
		t.Errorf("Decode() without type = %v, want nil", msg)
	}

	msg := Decode(sampleSettings, MessageSendSettings)
	if msg == nil {
		t.Fatal("Decode() = nil, want SEND_SETTINGS")
	}
	days, ok := Value[Weekdays](msg, "weekdays")
	if !ok {
		t.Fatalf("weekdays field missing or wrong type: %T", msg.Fields["weekdays"])
	}
	want := Weekdays{false, true, true, true, true, true, false}
	if days != want {
		t.Errorf("weekdays = %v, want %v", days, want)
	}
	if got := msg.Str("schedule"); got != "enabled" {
		t.Errorf("schedule = %q, want enabled", got)
	}
	if msg.Int("timer_start_h") != 8 || msg.Int("timer_start_min") != 30 {
		t.Errorf("start = %d:%d, want 8:30", msg.Int("timer_start_h"), msg.Int("timer_start_min"))
	}
	if msg.Int("timer_end_h") != 17 || msg.Int("timer_end_min") != 5 {
		t.Errorf("end = %d:%d, want 17:5", msg.Int("timer_end_h"), msg.Int("timer_end_min"))
	}
}

func TestDecode_Ack(t *testing.T) {
	msg := Decode(sampleAck, MessageUnknown)
	if msg == nil {
		t.Fatal("Decode() = nil, want SEND_ACK")
	}
	if msg.Type != MessageSendAck {
		t.Errorf("Type = %v, want %v", msg.Type, MessageSendAck)
	}
	if len(msg.Fields) != 0 {
		t.Errorf("Fields = %v, want empty", msg.Fields)
	}
}

func TestDecode_Dropped(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		known MessageType
	}{
		{"bad checksum", "55aa10001103499602D2c0a801640d05d8", MessageUnknown},
		{"unknown message id", mustAppendChecksum("55aa10000063"), MessageUnknown},
		{"empty", "", MessageUnknown},
		{"odd length", "55aa1000237", MessageUnknown},
		{"short header", mustAppendChecksum("55aa10"), MessageUnknown},
		{"field outside frame", mustAppendChecksum("55aa10002370"), MessageUnknown},
		{"state out of range", mustAppendChecksum("55aa1000237000000000e600e600e6000000005e09000000000000000f0000000003"), MessageUnknown},
		{"request type out of range", mustAppendChecksum("55aa10000b0000cb3405"), MessageRequestData},
		{"invalid known type", sampleAck, MessageType(99)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if msg := Decode(tt.frame, tt.known); msg != nil {
				t.Errorf("Decode() = %v, want nil", msg)
			}
		})
	}
}

func TestDecoder_LogsChecksumMismatch(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d := NewDecoder(zap.New(core))

	if msg := d.Decode("55aa10001103499602D2c0a801640d05d8", MessageUnknown); msg != nil {
		t.Fatalf("Decode() = %v, want nil", msg)
	}
	entries := logs.FilterMessage("Calculated checksum does not match").All()
	if len(entries) != 1 {
		t.Fatalf("got %d checksum log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["claimed"] != "d8" || fields["calculated"] != "b5" {
		t.Errorf("log fields = %v, want claimed=d8 calculated=b5", fields)
	}
}

func TestDecode_Deterministic(t *testing.T) {
	a := Decode(sampleValuesTimer, MessageUnknown)
	b := Decode(sampleValuesTimer, MessageUnknown)
	if a.String() != b.String() {
		t.Errorf("Decode() not deterministic:\n%s\n%s", a, b)
	}
}

func mustAppendChecksum(body string) string {
	frame, err := AppendChecksum(body)
	if err != nil {
		panic(err)
	}
	return frame
}
