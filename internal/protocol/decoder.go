package protocol

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Header holds the common header fields of a frame.
type Header struct {
	Tag       int
	Version   int
	MessageID int
}

// Message is a decoded frame. Field values are int, float64, string,
// Weekdays or one of the enum types, depending on the field kind.
type Message struct {
	Type   MessageType
	Header Header
	Fields map[string]any
}

// Value returns the named field if present and of type T.
func Value[T any](m *Message, name string) (T, bool) {
	var zero T
	if m == nil {
		return zero, false
	}
	v, ok := m.Fields[name].(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Int returns an integer field, or 0.
func (m *Message) Int(name string) int {
	v, _ := Value[int](m, name)
	return v
}

// Float returns a fixed point field, or 0.
func (m *Message) Float(name string) float64 {
	v, _ := Value[float64](m, name)
	return v
}

// Str returns a string field, or "".
func (m *Message) Str(name string) string {
	v, _ := Value[string](m, name)
	return v
}

func (m *Message) String() string {
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m.Fields[k]))
	}
	return fmt.Sprintf("%s{id=%d, %s}", m.Type, m.Header.MessageID, strings.Join(parts, ", "))
}

// Decoder turns hex frames into messages. The zero value is not usable; use
// NewDecoder.
type Decoder struct {
	log *zap.Logger
}

// NewDecoder returns a decoder that reports dropped frames to log at debug
// level. A nil logger is replaced by a no-op logger.
func NewDecoder(log *zap.Logger) *Decoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{log: log}
}

var defaultDecoder = NewDecoder(nil)

// Decode decodes frame with a silent decoder. See Decoder.Decode.
func Decode(frame string, known MessageType) *Message {
	return defaultDecoder.Decode(frame, known)
}

// Decode validates and decodes frame. If known is MessageUnknown the type is
// taken from the header message ID. It returns nil when the frame should be
// dropped: bad checksum, unknown message ID, a field outside the frame, or a
// value outside its enumeration.
func (d *Decoder) Decode(frame string, known MessageType) *Message {
	frame = strings.TrimSpace(frame)

	claimed, calculated, err := CompareChecksum(frame)
	if err != nil {
		d.log.Debug("Dropping malformed frame", zap.String("frame", frame), zap.Error(err))
		return nil
	}
	if claimed != calculated {
		d.log.Debug("Calculated checksum does not match",
			zap.String("claimed", fmt.Sprintf("%02x", claimed)),
			zap.String("calculated", fmt.Sprintf("%02x", calculated)),
			zap.String("frame", frame),
		)
		return nil
	}

	var header [3]int
	for i, f := range HeaderFields {
		v, err := decodeUint(frame, f)
		if err != nil {
			d.log.Debug("Dropping frame with short header", zap.String("frame", frame), zap.Error(err))
			return nil
		}
		header[i] = v
	}

	t := known
	if t == MessageUnknown {
		t = MessageTypeForID(header[2])
		if t == MessageUnknown {
			d.log.Debug("Unknown message ID", zap.Int("message_id", header[2]), zap.String("frame", frame))
			return nil
		}
	} else if !t.valid() {
		d.log.Debug("Invalid message type requested", zap.Int("type", int(t)))
		return nil
	}

	msg := &Message{
		Type:   t,
		Header: Header{Tag: header[0], Version: header[1], MessageID: header[2]},
		Fields: make(map[string]any),
	}

	if t == MessageHandshake {
		err = decodeHandshake(frame, msg)
	} else {
		err = decodeFields(frame, t, msg)
	}
	if err != nil {
		d.log.Debug("Dropping undecodable frame",
			zap.Stringer("type", t),
			zap.String("frame", frame),
			zap.Error(err),
		)
		return nil
	}
	return msg
}

func decodeFields(frame string, t MessageType, msg *Message) error {
	for _, f := range descriptors[t].fields {
		v, err := decodeField(frame, f)
		if err != nil {
			return err
		}
		msg.Fields[f.Name] = v

		if days, ok := v.(Weekdays); ok {
			if days.Any() {
				msg.Fields["schedule"] = "enabled"
			} else {
				msg.Fields["schedule"] = "disabled"
			}
		}
	}
	return nil
}

// decodeHandshake decodes the handshake explicitly: serial is four bytes,
// port two bytes, and the IP address four stepped byte pairs.
func decodeHandshake(frame string, msg *Message) error {
	fields := descriptors[MessageHandshake].fields
	serial, err := decodeUint(frame, fields[0])
	if err != nil {
		return err
	}
	ip, err := decodeIP(frame, fields[1])
	if err != nil {
		return err
	}
	port, err := decodeUint(frame, fields[2])
	if err != nil {
		return err
	}
	msg.Fields["serial"] = serial
	msg.Fields["ip"] = ip
	msg.Fields["port"] = port
	return nil
}

func decodeField(frame string, f Field) (any, error) {
	switch f.Kind {
	case KindIP:
		return decodeIP(frame, f)
	case KindModel:
		start, end, err := f.Bounds(len(frame))
		if err != nil {
			return nil, err
		}
		return decodeModel(frame[start:end])
	}

	v, err := decodeUint(frame, f)
	if err != nil {
		return nil, err
	}

	switch f.Kind {
	case KindChargerState:
		s := ChargerState(v)
		if v > 0xff || !s.Valid() {
			return nil, fmt.Errorf("field %s: unknown charger state %d", f.Name, v)
		}
		return s, nil
	case KindTimerState:
		s := TimerState(v)
		if v > 0xff || !s.Valid() {
			return nil, fmt.Errorf("field %s: unknown timer state %d", f.Name, v)
		}
		return s, nil
	case KindRequestType:
		r := RequestType(v)
		if v > 0xff || !r.Valid() {
			return nil, fmt.Errorf("field %s: unknown request type %d", f.Name, v)
		}
		return r, nil
	case KindChargerCommand:
		c := ChargerCommand(v)
		if v > 0xff || !c.Valid() {
			return nil, fmt.Errorf("field %s: unknown charger command %d", f.Name, v)
		}
		return c, nil
	case KindTenths:
		return float64(v) / 10, nil
	case KindWeekdays:
		return WeekdaysFromBitmask(v), nil
	default:
		return v, nil
	}
}

func decodeUint(frame string, f Field) (int, error) {
	start, end, err := f.Bounds(len(frame))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(frame[start:end], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("field %s: invalid hex %q", f.Name, frame[start:end])
	}
	return int(v), nil
}
