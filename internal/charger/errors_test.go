package charger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"
)

func TestClassifyNetworkError_Timeout(t *testing.T) {
	err := &net.OpError{
		Op:  "read",
		Net: "udp4",
		Err: &timeoutError{},
	}

	devErr := ClassifyNetworkError(err, "192.168.1.100")

	if devErr == nil {
		t.Fatal("Expected DeviceError, got nil")
	}

	if devErr.Type != ErrTypeTimeout {
		t.Errorf("Expected error type %v, got %v", ErrTypeTimeout, devErr.Type)
	}

	if devErr.NetworkSubtype != NetworkErrorTimeout {
		t.Errorf("Expected network subtype %v, got %v", NetworkErrorTimeout, devErr.NetworkSubtype)
	}

	if !devErr.Retryable {
		t.Error("Expected timeout error to be retryable")
	}
}

func TestClassifyNetworkError_ConnectionRefused(t *testing.T) {
	err := &net.OpError{
		Op:  "read",
		Net: "udp4",
		Err: syscall.ECONNREFUSED,
	}

	devErr := ClassifyNetworkError(err, "192.168.1.100")

	if devErr.Type != ErrTypeConnectionRefused {
		t.Errorf("Expected error type %v, got %v", ErrTypeConnectionRefused, devErr.Type)
	}

	if devErr.NetworkSubtype != NetworkErrorConnectionRefused {
		t.Errorf("Expected network subtype %v, got %v", NetworkErrorConnectionRefused, devErr.NetworkSubtype)
	}
}

func TestClassifyNetworkError_Unreachable(t *testing.T) {
	tests := []struct {
		errno   syscall.Errno
		subtype NetworkErrorSubtype
	}{
		{syscall.EHOSTUNREACH, NetworkErrorHostUnreachable},
		{syscall.ENETUNREACH, NetworkErrorNetworkUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.errno.Error(), func(t *testing.T) {
			err := &net.OpError{Op: "write", Net: "udp4", Err: tt.errno}
			devErr := ClassifyNetworkError(err, "192.168.1.100")

			if devErr.Type != ErrTypeNetwork {
				t.Errorf("Expected error type %v, got %v", ErrTypeNetwork, devErr.Type)
			}
			if devErr.NetworkSubtype != tt.subtype {
				t.Errorf("Expected network subtype %v, got %v", tt.subtype, devErr.NetworkSubtype)
			}
			if devErr.DeviceIP != "192.168.1.100" {
				t.Errorf("Expected DeviceIP 192.168.1.100, got %s", devErr.DeviceIP)
			}
		})
	}
}

func TestClassifyNetworkError_Context(t *testing.T) {
	canceled := ClassifyNetworkError(fmt.Errorf("%w: read failed", context.Canceled), "")
	if canceled.Type != ErrTypeCanceled {
		t.Errorf("Expected error type %v, got %v", ErrTypeCanceled, canceled.Type)
	}
	if canceled.Retryable {
		t.Error("Expected canceled error not to be retryable")
	}

	deadline := ClassifyNetworkError(context.DeadlineExceeded, "")
	if deadline.Type != ErrTypeTimeout {
		t.Errorf("Expected error type %v, got %v", ErrTypeTimeout, deadline.Type)
	}

	if ClassifyNetworkError(nil, "") != nil {
		t.Error("Expected nil for nil error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", &DeviceError{Type: ErrTypeTimeout, Retryable: true}, true},
		{"decode", NewDecodeError("bad frame", "55aa"), true},
		{"access denied", NewAccessDeniedError("192.168.1.100"), false},
		{"validation", NewValidationError("bad value", nil), false},
		{"wrapped timeout", fmt.Errorf("determine state: %w", &DeviceError{Type: ErrTypeTimeout, Retryable: true}), true},
		{"plain error", errors.New("boom"), false},
		{"unplugged", ErrChargerUnplugged, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	decode := NewDecodeError("bad checksum", "55aa10")
	if !IsDecodeError(decode) || IsNetworkError(decode) {
		t.Error("decode error misclassified")
	}
	if decode.Frame != "55aa10" {
		t.Errorf("Frame = %q, want 55aa10", decode.Frame)
	}

	refused := &DeviceError{Type: ErrTypeConnectionRefused}
	if !IsNetworkError(refused) {
		t.Error("Expected connection refused to count as a network error")
	}

	if IsTimeout(errors.New("i/o timeout")) {
		t.Error("Expected untyped error not to be a timeout")
	}
}

func TestDeviceError_Error(t *testing.T) {
	err := NewValidationError("invalid timer start", errors.New("hour 25 out of range"))
	want := "Validation Error: invalid timer start (caused by: hour 25 out of range)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	bare := NewAccessDeniedError("10.0.0.2")
	if bare.Error() != "Access Denied: Charger denied request" {
		t.Errorf("Error() = %q", bare.Error())
	}

	cause := errors.New("cause")
	if !errors.Is(NewValidationError("x", cause), cause) {
		t.Error("Expected Unwrap to expose the cause")
	}
}

func TestGetShortErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &DeviceError{Type: ErrTypeTimeout}, "Charger not responding (timeout)"},
		{"access denied", NewAccessDeniedError(""), "Charger denied request - reconfigure PIN"},
		{"host unreachable", &DeviceError{Type: ErrTypeNetwork, NetworkSubtype: NetworkErrorHostUnreachable}, "Charger unreachable - check network connection"},
		{"decode", NewDecodeError("x", ""), "Failed to decode charger response"},
		{"validation", NewValidationError("monthly consumption must be 0-65535 kWh, got 70000", nil), "monthly consumption must be 0-65535 kWh, got 70000"},
		{"plain", errors.New("something else"), "something else"},
		{"unplugged", ErrChargerUnplugged, "charger is unplugged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetShortErrorMessage(tt.err); got != tt.want {
				t.Errorf("GetShortErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetTroubleshootingHint(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"timeout", &DeviceError{Type: ErrTypeTimeout}, "UDP port 3333"},
		{"access denied", NewAccessDeniedError(""), "PIN"},
		{"host unreachable", &DeviceError{Type: ErrTypeNetwork, NetworkSubtype: NetworkErrorHostUnreachable, DeviceIP: "10.0.0.2"}, "ping 10.0.0.2"},
		{"decode", NewDecodeError("x", ""), "--log-level debug"},
		{"unplugged", ErrChargerUnplugged, "Plug in the vehicle"},
		{"state unknown", fmt.Errorf("guard: %w", ErrStateUnknown), "benyctl status"},
		{"plain", errors.New("x"), "unexpected error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := GetTroubleshootingHint(tt.err)
			if !strings.Contains(hint, tt.contains) {
				t.Errorf("GetTroubleshootingHint() = %q, want it to contain %q", hint, tt.contains)
			}
		})
	}
}

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		et   ErrorType
		want string
	}{
		{ErrTypeNetwork, "Network Error"},
		{ErrTypeTimeout, "Timeout"},
		{ErrTypeDecode, "Decode Error"},
		{ErrTypeAccessDenied, "Access Denied"},
		{ErrTypeCanceled, "Canceled"},
		{ErrorType(99), "ErrorType(99)"},
	}

	for _, tt := range tests {
		if got := tt.et.String(); got != tt.want {
			t.Errorf("ErrorType(%d).String() = %q, want %q", int(tt.et), got, tt.want)
		}
	}
}

// timeoutError is a mock error that implements timeout behavior
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
