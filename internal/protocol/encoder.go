package protocol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Params maps template placeholder names to pre-formatted hex text. Callers
// build a fresh map per frame.
type Params map[string]string

// ErrNoTemplate is returned when building a server-originated message.
var ErrNoTemplate = errors.New("message type has no template")

// PlaceholderError reports template placeholders left without a value.
type PlaceholderError struct {
	Type         MessageType
	Placeholders []string
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("%s: missing parameters %s", e.Type, strings.Join(e.Placeholders, ", "))
}

// ParamError reports a parameter value that is not hex text of the
// placeholder's width.
type ParamError struct {
	Type  MessageType
	Name  string
	Value string
	Width int
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: parameter %s=%q must be %d hex digits", e.Type, e.Name, e.Value, e.Width)
}

var placeholderPattern = regexp.MustCompile(`\[([a-z0-9_]+)\]`)

// Build fills the template of t with params and appends the checksum.
// Parameters without a matching placeholder are ignored.
func Build(t MessageType, params Params) (string, error) {
	tpl := t.Template()
	if tpl == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTemplate, t)
	}
	if err := ValidateParams(t, params); err != nil {
		return "", err
	}

	var missing []string
	frame := placeholderPattern.ReplaceAllStringFunc(tpl, func(token string) string {
		name := token[1 : len(token)-1]
		if name == "checksum" {
			return token
		}
		v, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return token
		}
		return strings.ToLower(v)
	})
	if len(missing) > 0 {
		return "", &PlaceholderError{Type: t, Placeholders: missing}
	}

	sum, err := CalculateChecksum(frame)
	if err != nil {
		return "", fmt.Errorf("%s: %w", t, err)
	}
	return strings.Replace(frame, ChecksumPlaceholder, fmt.Sprintf("%02x", sum), 1), nil
}

// ValidateParams checks that every parameter filling a placeholder of t is
// hex text of the placeholder's width. Parameters t does not use are not
// checked.
func ValidateParams(t MessageType, params Params) error {
	for _, name := range Placeholders(t) {
		v, ok := params[name]
		if !ok {
			continue
		}
		width := t.PlaceholderWidth(name)
		if len(v) != width || !isHex(v) {
			return &ParamError{Type: t, Name: name, Value: v, Width: width}
		}
	}
	return nil
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return s != ""
}

// Placeholders lists the parameters t's template expects, excluding the
// checksum.
func Placeholders(t MessageType) []string {
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(t.Template(), -1) {
		if m[1] != "checksum" {
			names = append(names, m[1])
		}
	}
	return names
}
