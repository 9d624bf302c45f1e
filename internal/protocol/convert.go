package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HexByte formats v as two zero-padded lowercase hex digits.
func HexByte(v int) string { return fmt.Sprintf("%02x", v) }

// HexWord formats v as four zero-padded lowercase hex digits.
func HexWord(v int) string { return fmt.Sprintf("%04x", v) }

// TimeOfDay is an hour and minute on a 24 hour clock.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "H:MM" or "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	t := TimeOfDay{Hour: hour, Minute: minute}
	if err := t.Validate(); err != nil {
		return TimeOfDay{}, err
	}
	return t, nil
}

func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 {
		return fmt.Errorf("hour %d out of range 0-23", t.Hour)
	}
	if t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("minute %d out of range 0-59", t.Minute)
	}
	return nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// On returns t on the calendar day of ref, in ref's location.
func (t TimeOfDay) On(ref time.Time) time.Time {
	y, mo, d := ref.Date()
	return time.Date(y, mo, d, t.Hour, t.Minute, 0, 0, ref.Location())
}

// TimeToHex encodes hour and minute as two hex digits each.
func TimeToHex(t TimeOfDay) (hour, minute string) {
	return HexByte(t.Hour), HexByte(t.Minute)
}

// Weekdays holds one flag per day, indexed by time.Weekday (Sunday first).
// On the wire it is a bitmask with bit 0 for Sunday through bit 6 for
// Saturday.
type Weekdays [7]bool

var weekdayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// WeekdaysFromBitmask decodes the low seven bits of v.
func WeekdaysFromBitmask(v int) Weekdays {
	var w Weekdays
	for i := range w {
		w[i] = v&(1<<i) != 0
	}
	return w
}

// Bitmask encodes w for the wire.
func (w Weekdays) Bitmask() uint8 {
	var v uint8
	for i, on := range w {
		if on {
			v |= 1 << i
		}
	}
	return v
}

// Any reports whether at least one day is enabled.
func (w Weekdays) Any() bool { return w.Bitmask() != 0 }

// Map returns a day name to flag mapping ("sunday": true, ...).
func (w Weekdays) Map() map[string]bool {
	m := make(map[string]bool, len(w))
	for i, on := range w {
		m[weekdayNames[i]] = on
	}
	return m
}

func (w Weekdays) MarshalJSON() ([]byte, error) { return json.Marshal(w.Map()) }

// String lists enabled days by three letter abbreviation, e.g. "mon,tue".
func (w Weekdays) String() string {
	var days []string
	for i, on := range w {
		if on {
			days = append(days, weekdayNames[i][:3])
		}
	}
	if len(days) == 0 {
		return "none"
	}
	return strings.Join(days, ",")
}

// ParseWeekdays accepts a comma separated list of day names or
// abbreviations, or one of "all", "weekdays", "weekend", "none".
func ParseWeekdays(s string) (Weekdays, error) {
	var w Weekdays
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "daily":
		return Weekdays{true, true, true, true, true, true, true}, nil
	case "weekdays":
		return Weekdays{false, true, true, true, true, true, false}, nil
	case "weekend":
		return Weekdays{true, false, false, false, false, false, true}, nil
	case "none", "":
		return w, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		found := false
		for i, name := range weekdayNames {
			if len(part) >= 3 && strings.HasPrefix(name, part) {
				w[i] = true
				found = true
				break
			}
		}
		if !found {
			return Weekdays{}, fmt.Errorf("unknown weekday %q", part)
		}
	}
	return w, nil
}

// TimerParams builds SET_TIMER placeholders. Without an end time the end
// flag is "00000" and the end hour and minute are zero.
func TimerParams(start TimeOfDay, end *TimeOfDay) Params {
	p := Params{}
	p["start_h"], p["start_min"] = TimeToHex(start)
	if end != nil {
		p["end_timer_set"] = "11111"
		p["end_h"], p["end_min"] = TimeToHex(*end)
	} else {
		p["end_timer_set"] = "00000"
		p["end_h"], p["end_min"] = HexByte(0), HexByte(0)
	}
	return p
}

// ScheduleParams builds SET_SCHEDULE placeholders.
func ScheduleParams(days Weekdays, start, end TimeOfDay) Params {
	p := Params{"weekdays": HexByte(int(days.Bitmask()))}
	p["start_h"], p["start_min"] = TimeToHex(start)
	p["end_h"], p["end_min"] = TimeToHex(end)
	return p
}

// RequestDataParams builds REQUEST_DATA placeholders.
func RequestDataParams(rt RequestType) Params {
	return Params{"request_type": HexByte(int(rt))}
}

// ChargerCommandParams builds SEND_CHARGER_COMMAND placeholders.
func ChargerCommandParams(cmd ChargerCommand) Params {
	return Params{"charger_command": HexByte(int(cmd))}
}

// IPFromFrame reads the dotted quad carried by a HANDSHAKE frame.
func IPFromFrame(frame string) (string, error) {
	return decodeIP(frame, descriptors[MessageHandshake].fields[1])
}

// ModelFromFrame reads the model string carried by a SEND_MODEL frame.
func ModelFromFrame(frame string) (string, error) {
	f := descriptors[MessageSendModel].fields[1]
	start, end, err := f.Bounds(len(frame))
	if err != nil {
		return "", err
	}
	return decodeModel(frame[start:end])
}

func decodeIP(frame string, f Field) (string, error) {
	start, end, err := f.Bounds(len(frame))
	if err != nil {
		return "", err
	}
	step := f.Step
	if step <= 0 {
		step = 2
	}
	octets := make([]string, 0, 4)
	for i := start; i < end; i += step {
		if i+2 > len(frame) {
			return "", fmt.Errorf("field %s: truncated octet at %d", f.Name, i)
		}
		b, err := parseByte(frame[i : i+2])
		if err != nil {
			return "", fmt.Errorf("field %s: %w", f.Name, err)
		}
		octets = append(octets, strconv.Itoa(int(b)))
	}
	return strings.Join(octets, "."), nil
}

// decodeModel keeps printable ASCII bytes only and trims surrounding space.
func decodeModel(hexText string) (string, error) {
	if len(hexText)%2 != 0 {
		return "", ErrOddLength
	}
	var sb strings.Builder
	for i := 0; i < len(hexText); i += 2 {
		b, err := parseByte(hexText[i : i+2])
		if err != nil {
			return "", fmt.Errorf("field model: %w", err)
		}
		if b >= 32 && b <= 126 {
			sb.WriteByte(b)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
