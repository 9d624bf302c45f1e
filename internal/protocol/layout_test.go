package protocol

import (
	"strings"
	"testing"
)

func TestMessageTypeForID(t *testing.T) {
	tests := []struct {
		id   int
		want MessageType
	}{
		{8, MessageSendAck},
		{35, MessageSendValues},
		{17, MessageHandshake},
		{32, MessageSendModel},
		{11, MessageRequestData},
		{28, MessageSetTimer},
		{12, MessageSendChargerCommand},
		{99, MessageUnknown},
		{0, MessageUnknown},
	}
	for _, tt := range tests {
		if got := MessageTypeForID(tt.id); got != tt.want {
			t.Errorf("MessageTypeForID(%d) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestMessageType_Tables(t *testing.T) {
	for _, mt := range MessageTypes() {
		if mt.Description() == "" {
			t.Errorf("%v has no description", mt)
		}
		switch mt.Direction() {
		case DirectionClient:
			tpl := mt.Template()
			if !strings.HasPrefix(tpl, HeaderTag+HeaderVersion) {
				t.Errorf("%v template %q does not start with header", mt, tpl)
			}
			if !strings.HasSuffix(tpl, ChecksumPlaceholder) {
				t.Errorf("%v template %q does not end with checksum", mt, tpl)
			}
		case DirectionServer:
			if mt.Template() != "" {
				t.Errorf("%v is server originated but has a template", mt)
			}
		}
		for _, f := range mt.Fields() {
			if f.End >= 0 && f.Start >= f.End {
				t.Errorf("%v field %s has empty range [%d:%d]", mt, f.Name, f.Start, f.End)
			}
		}
	}
}

func TestParseMessageType(t *testing.T) {
	tests := []struct {
		in   string
		want MessageType
	}{
		{"send_values", MessageSendValues},
		{"SEND-VALUES", MessageSendValues},
		{"SendValues", MessageSendValues},
		{"set_max_monthly_consumption", MessageSetMaxMonthlyConsumption},
	}
	for _, tt := range tests {
		got, err := ParseMessageType(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseMessageType(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseMessageType("bogus"); err == nil {
		t.Error("ParseMessageType(bogus) expected error")
	}
}

func TestField_Bounds(t *testing.T) {
	model := Field{Name: "model", Start: 12, End: -2}
	start, end, err := model.Bounds(38)
	if err != nil || start != 12 || end != 36 {
		t.Errorf("Bounds(38) = %d, %d, %v, want 12, 36, nil", start, end, err)
	}
	if _, _, err := model.Bounds(13); err == nil {
		t.Error("Bounds(13) expected error for empty range")
	}
	if _, _, err := (Field{Name: "x", Start: 56, End: 58}).Bounds(40); err == nil {
		t.Error("Bounds(40) expected error for range past end")
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{StateCharging.String(), "CHARGING"},
		{StateUnplugged.Label(), "unplugged"},
		{ChargerState(9).String(), "ChargerState(9)"},
		{TimerStartEndTime.String(), "START_END_TIME"},
		{CommandStart.String(), "START"},
		{RequestValues.String(), "VALUES"},
		{RequestType(112).String(), "VALUES"},
		{MessageSendValues.String(), "SEND_VALUES"},
		{MessageType(42).String(), "MessageType(42)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}

