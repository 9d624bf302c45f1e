package protocol

import (
	"fmt"
	"strings"
)

// Header constants shared by every frame.
const (
	HeaderTag     = "55aa"
	HeaderVersion = "10"

	// DefaultPort is the UDP port the charger listens on.
	DefaultPort = 3333

	// MaxDatagramSize bounds a single response read.
	MaxDatagramSize = 1024

	// MinFrameLength is a header byte pair plus the checksum.
	MinFrameLength = 4
)

// MessageType identifies a frame variant. The zero value means "not known";
// passing it to Decode asks for detection from the message ID.
type MessageType int

const (
	MessageUnknown MessageType = iota

	// Client originated.
	MessagePollDevices
	MessageRequestData
	MessageSendChargerCommand
	MessageSetTimer
	MessageResetTimer
	MessageRequestSettings
	MessageSetSchedule
	MessageSetMaxMonthlyConsumption
	MessageSetMaxSessionConsumption

	// Server originated.
	MessageHandshake
	MessageSendModel
	MessageSendValues
	MessageSendAck
	MessageSendSettings
	MessageAccessDenied

	messageTypeCount
)

// Direction tells which side of the link originates a message type.
type Direction int

const (
	DirectionClient Direction = iota
	DirectionServer
)

func (d Direction) String() string {
	if d == DirectionServer {
		return "server"
	}
	return "client"
}

// FieldKind selects how a field's hex text is turned into a value.
type FieldKind int

const (
	KindUint FieldKind = iota
	KindChargerState
	KindTimerState
	KindRequestType
	KindChargerCommand
	KindTenths // fixed point, one decimal place
	KindModel
	KindWeekdays
	KindIP
)

// Field is a named range of hex characters. End may be negative, in which
// case it counts back from the end of the frame. Step is only used by the
// IP field, where it selects one byte pair every Step characters.
type Field struct {
	Name  string
	Start int
	End   int
	Step  int
	Kind  FieldKind
}

// Bounds resolves the field against a frame of length n.
func (f Field) Bounds(n int) (start, end int, err error) {
	start, end = f.Start, f.End
	if end < 0 {
		end += n
	}
	if start < 0 || end > n || start >= end {
		return 0, 0, fmt.Errorf("field %s [%d:%d] outside frame of length %d", f.Name, f.Start, f.End, n)
	}
	return start, end, nil
}

type descriptor struct {
	name        string
	direction   Direction
	description string
	messageID   int // 0 when the type is not dispatched by ID
	template    string
	widths      map[string]int // placeholder name -> hex digits
	fields      []Field
}

// HeaderFields are decoded for every frame.
var HeaderFields = []Field{
	{Name: "header", Start: 0, End: 4},
	{Name: "version", Start: 4, End: 6},
	{Name: "message_id", Start: 6, End: 10},
}

// accessDeniedID is the message ID of the charger's PIN rejection. It has
// not been captured from a device yet.
const accessDeniedID = 9

var descriptors = [messageTypeCount]descriptor{
	MessageUnknown: {name: "UNKNOWN"},

	MessagePollDevices: {
		name:        "POLL_DEVICES",
		direction:   DirectionClient,
		description: "Poll chargers on the local network",
		template:    "55aa10000f0000cb34030e5a7937[checksum]",
	},
	MessageRequestData: {
		name:        "REQUEST_DATA",
		direction:   DirectionClient,
		description: "Request data from charger",
		messageID:   11,
		template:    "55aa10000b0000cb34[request_type][checksum]",
		widths:      map[string]int{"request_type": 2},
		fields: []Field{
			{Name: "request_type", Start: 18, End: 20, Kind: KindRequestType},
		},
	},
	MessageSendChargerCommand: {
		name:        "SEND_CHARGER_COMMAND",
		direction:   DirectionClient,
		description: "Start or stop charging",
		messageID:   12,
		template:    "55aa10000c0000cb3406[charger_command][checksum]",
		widths:      map[string]int{"charger_command": 2},
		fields: []Field{
			{Name: "charger_command", Start: 21, End: 22, Kind: KindChargerCommand},
		},
	},
	MessageSetTimer: {
		name:        "SET_TIMER",
		direction:   DirectionClient,
		description: "Set charging timer",
		messageID:   28,
		template:    "55aa10001c0000cb346900016008000[end_timer_set][start_h][start_min]00[end_h][end_min]0017153b[checksum]",
		widths: map[string]int{
			"end_timer_set": 5, "start_h": 2, "start_min": 2, "end_h": 2, "end_min": 2,
		},
		// start_h overlaps the last digit of the end timer flag.
		fields: []Field{
			{Name: "end_timer_set", Start: 31, End: 35},
			{Name: "start_h", Start: 35, End: 38},
			{Name: "start_min", Start: 38, End: 40},
			{Name: "end_h", Start: 42, End: 44},
			{Name: "end_min", Start: 44, End: 46},
		},
	},
	MessageResetTimer: {
		name:        "RESET_TIMER",
		direction:   DirectionClient,
		description: "Clear charging timer",
		template:    "55aa10001c0000cb34690000000000000000000000000000171035[checksum]",
	},
	MessageRequestSettings: {
		name:        "REQUEST_SETTINGS",
		direction:   DirectionClient,
		description: "Request weekly schedule settings",
		template:    "55aa10000b0000cb3471[checksum]",
	},
	MessageSetSchedule: {
		name:        "SET_SCHEDULE",
		direction:   DirectionClient,
		description: "Set weekly charging schedule",
		template:    "55aa1000160000cb347519010e0f2725[weekdays][start_h][start_min][end_h][end_min][checksum]",
		widths: map[string]int{
			"weekdays": 2, "start_h": 2, "start_min": 2, "end_h": 2, "end_min": 2,
		},
		fields: []Field{
			{Name: "weekdays", Start: 32, End: 34, Kind: KindWeekdays},
			{Name: "start_h", Start: 34, End: 36},
			{Name: "start_min", Start: 36, End: 38},
			{Name: "end_h", Start: 38, End: 40},
			{Name: "end_min", Start: 40, End: 42},
		},
	},
	MessageSetMaxMonthlyConsumption: {
		name:        "SET_MAX_MONTHLY_CONSUMPTION",
		direction:   DirectionClient,
		description: "Set maximum monthly consumption (kWh)",
		template:    "55aa10000d0000cb3478[maximum_consumption][checksum]",
		widths:      map[string]int{"maximum_consumption": 4},
		fields: []Field{
			{Name: "maximum_consumption", Start: 20, End: 24},
		},
	},
	MessageSetMaxSessionConsumption: {
		name:        "SET_MAX_SESSION_CONSUMPTION",
		direction:   DirectionClient,
		description: "Set maximum session consumption (kWh)",
		template:    "55aa10000c0000cb3474[maximum_consumption][checksum]",
		widths:      map[string]int{"maximum_consumption": 2},
		fields: []Field{
			{Name: "maximum_consumption", Start: 20, End: 22},
		},
	},

	MessageHandshake: {
		name:        "HANDSHAKE",
		direction:   DirectionServer,
		description: "Charger handshake",
		messageID:   17,
		fields: []Field{
			{Name: "serial", Start: 12, End: 20},
			{Name: "ip", Start: 20, End: 28, Step: 2, Kind: KindIP},
			{Name: "port", Start: 28, End: 32},
		},
	},
	MessageSendModel: {
		name:        "SEND_MODEL",
		direction:   DirectionServer,
		description: "Charger model",
		messageID:   32,
		fields: []Field{
			{Name: "request_type", Start: 10, End: 12, Kind: KindRequestType},
			{Name: "model", Start: 12, End: -2, Kind: KindModel},
		},
	},
	MessageSendValues: {
		name:        "SEND_VALUES",
		direction:   DirectionServer,
		description: "Charger measurements and state",
		messageID:   35,
		fields: []Field{
			{Name: "request_type", Start: 10, End: 12, Kind: KindRequestType},
			{Name: "current1", Start: 13, End: 14},
			{Name: "current2", Start: 15, End: 16},
			{Name: "current3", Start: 17, End: 18},
			{Name: "voltage1", Start: 20, End: 22},
			{Name: "voltage2", Start: 24, End: 26},
			{Name: "voltage3", Start: 28, End: 30},
			{Name: "power", Start: 30, End: 34, Kind: KindTenths},
			{Name: "total_kwh", Start: 34, End: 38, Kind: KindTenths},
			{Name: "state", Start: 40, End: 42, Kind: KindChargerState},
			{Name: "timer_state", Start: 42, End: 44, Kind: KindTimerState},
			{Name: "max_current", Start: 56, End: 58},
			{Name: "timer_start_h", Start: 44, End: 46},
			{Name: "timer_start_min", Start: 46, End: 48},
			{Name: "timer_end_h", Start: 50, End: 52},
			{Name: "timer_end_min", Start: 52, End: 54},
			{Name: "maximum_session_consumption", Start: 58, End: 60},
		},
	},
	MessageSendAck: {
		name:        "SEND_ACK",
		direction:   DirectionServer,
		description: "Command acknowledged",
		messageID:   8,
	},
	MessageSendSettings: {
		name:        "SEND_SETTINGS",
		direction:   DirectionServer,
		description: "Weekly schedule settings",
		fields: []Field{
			{Name: "weekdays", Start: 30, End: 32, Kind: KindWeekdays},
			{Name: "timer_start_h", Start: 32, End: 34},
			{Name: "timer_start_min", Start: 34, End: 36},
			{Name: "timer_end_h", Start: 36, End: 38},
			{Name: "timer_end_min", Start: 38, End: 40},
		},
	},
	MessageAccessDenied: {
		name:        "ACCESS_DENIED",
		direction:   DirectionServer,
		description: "Request rejected, PIN mismatch",
		messageID:   accessDeniedID,
	},
}

// byMessageID is built once from the descriptor table.
var byMessageID = func() map[int]MessageType {
	m := make(map[int]MessageType)
	for t := MessageUnknown + 1; t < messageTypeCount; t++ {
		if id := descriptors[t].messageID; id != 0 {
			m[id] = t
		}
	}
	return m
}()

func (t MessageType) valid() bool { return t > MessageUnknown && t < messageTypeCount }

func (t MessageType) String() string {
	if t >= MessageUnknown && t < messageTypeCount {
		return descriptors[t].name
	}
	return fmt.Sprintf("MessageType(%d)", int(t))
}

// Description is a short human description of the message type.
func (t MessageType) Description() string {
	if !t.valid() {
		return ""
	}
	return descriptors[t].description
}

func (t MessageType) Direction() Direction {
	if !t.valid() {
		return DirectionClient
	}
	return descriptors[t].direction
}

// Template returns the hex template for client messages, or "" for server
// messages.
func (t MessageType) Template() string {
	if !t.valid() {
		return ""
	}
	return descriptors[t].template
}

// PlaceholderWidth returns the number of hex digits the named placeholder
// of t's template takes, or 0 if t has no such placeholder.
func (t MessageType) PlaceholderWidth(name string) int {
	if !t.valid() {
		return 0
	}
	return descriptors[t].widths[name]
}

// Fields returns a copy of the message's field layout, in table order.
func (t MessageType) Fields() []Field {
	if !t.valid() {
		return nil
	}
	return append([]Field(nil), descriptors[t].fields...)
}

// MessageID returns the dispatch ID, or 0 if the type is not dispatched.
func (t MessageType) MessageID() int {
	if !t.valid() {
		return 0
	}
	return descriptors[t].messageID
}

// MessageTypeForID resolves a header message ID. Unknown IDs yield
// MessageUnknown.
func MessageTypeForID(id int) MessageType {
	return byMessageID[id]
}

// ParseMessageType resolves a name such as "send_values", "SEND-VALUES" or
// "SendValues".
func ParseMessageType(name string) (MessageType, error) {
	norm := strings.NewReplacer("-", "", "_", "").Replace(strings.ToUpper(name))
	for t := MessageUnknown + 1; t < messageTypeCount; t++ {
		if strings.ReplaceAll(descriptors[t].name, "_", "") == norm {
			return t, nil
		}
	}
	return MessageUnknown, fmt.Errorf("unknown message type %q", name)
}

// MessageTypes lists every known type in table order.
func MessageTypes() []MessageType {
	out := make([]MessageType, 0, messageTypeCount-1)
	for t := MessageUnknown + 1; t < messageTypeCount; t++ {
		out = append(out, t)
	}
	return out
}
