package protocol

import (
	"fmt"
	"strings"
)

// ChargerState is the charging state reported in SEND_VALUES.
type ChargerState uint8

const (
	StateAbnormal ChargerState = iota
	StateUnplugged
	StateStandby
	StateStarting
	StateUnknown
	StateWaiting
	StateCharging
)

var chargerStateNames = [...]string{
	StateAbnormal:  "ABNORMAL",
	StateUnplugged: "UNPLUGGED",
	StateStandby:   "STANDBY",
	StateStarting:  "STARTING",
	StateUnknown:   "UNKNOWN",
	StateWaiting:   "WAITING",
	StateCharging:  "CHARGING",
}

// Valid reports whether s is one of the states the charger is known to send.
func (s ChargerState) Valid() bool { return int(s) < len(chargerStateNames) }

func (s ChargerState) String() string {
	if s.Valid() {
		return chargerStateNames[s]
	}
	return fmt.Sprintf("ChargerState(%d)", uint8(s))
}

// Label returns the lowercase state name used in readings ("charging").
func (s ChargerState) Label() string { return strings.ToLower(s.String()) }

func (s ChargerState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// TimerState describes which parts of the one-shot charging timer are set.
type TimerState uint8

const (
	TimerUnset TimerState = iota
	TimerStartTime
	TimerEndTime
	TimerStartEndTime
)

var timerStateNames = [...]string{
	TimerUnset:        "UNSET",
	TimerStartTime:    "START_TIME",
	TimerEndTime:      "END_TIME",
	TimerStartEndTime: "START_END_TIME",
}

func (s TimerState) Valid() bool { return int(s) < len(timerStateNames) }

func (s TimerState) String() string {
	if s.Valid() {
		return timerStateNames[s]
	}
	return fmt.Sprintf("TimerState(%d)", uint8(s))
}

func (s TimerState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// HasStart reports whether the timer carries a start time.
func (s TimerState) HasStart() bool { return s == TimerStartTime || s == TimerStartEndTime }

// HasEnd reports whether the timer carries an end time.
func (s TimerState) HasEnd() bool { return s == TimerEndTime || s == TimerStartEndTime }

// ChargerCommand is the payload of SEND_CHARGER_COMMAND.
type ChargerCommand uint8

const (
	CommandStop ChargerCommand = iota
	CommandStart
)

func (c ChargerCommand) Valid() bool { return c <= CommandStart }

func (c ChargerCommand) String() string {
	switch c {
	case CommandStop:
		return "STOP"
	case CommandStart:
		return "START"
	default:
		return fmt.Sprintf("ChargerCommand(%d)", uint8(c))
	}
}

func (c ChargerCommand) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// ParseChargerCommand maps "start" and "stop" (any case) to a command.
func ParseChargerCommand(s string) (ChargerCommand, error) {
	switch strings.ToLower(s) {
	case "start":
		return CommandStart, nil
	case "stop":
		return CommandStop, nil
	default:
		return 0, fmt.Errorf("unknown charger command %q (want start or stop)", s)
	}
}

// RequestType selects which data set REQUEST_DATA asks for.
type RequestType uint8

const (
	RequestModel    RequestType = 4
	RequestValues   RequestType = 112
	RequestSettings RequestType = 113
)

func (r RequestType) Valid() bool {
	switch r {
	case RequestModel, RequestValues, RequestSettings:
		return true
	}
	return false
}

func (r RequestType) String() string {
	switch r {
	case RequestModel:
		return "MODEL"
	case RequestValues:
		return "VALUES"
	case RequestSettings:
		return "SETTINGS"
	default:
		return fmt.Sprintf("RequestType(%d)", uint8(r))
	}
}

func (r RequestType) MarshalText() ([]byte, error) { return []byte(r.String()), nil }
