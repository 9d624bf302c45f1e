package charger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

// Guard errors are returned before any datagram is sent.
var (
	// ErrChargerUnplugged means the last known state is UNPLUGGED.
	ErrChargerUnplugged = errors.New("charger is unplugged")
	// ErrStateUnknown means no charger state is known yet.
	ErrStateUnknown = errors.New("charger state unknown")
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a socket-level error (send or receive failed)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates the charger did not answer in time
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates an ICMP port unreachable reply
	ErrTypeConnectionRefused
	// ErrTypeDecode indicates a response that failed checksum or layout decoding
	ErrTypeDecode
	// ErrTypeAccessDenied indicates the charger rejected the request (PIN mismatch)
	ErrTypeAccessDenied
	// ErrTypeValidation indicates invalid parameters, caught before sending
	ErrTypeValidation
	// ErrTypeCanceled indicates the caller abandoned the exchange
	ErrTypeCanceled
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDecode:
		return "Decode Error"
	case ErrTypeAccessDenied:
		return "Access Denied"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeCanceled:
		return "Canceled"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred during a charger exchange
type DeviceError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	DeviceIP       string              // Charger IP address (for context)
	Frame          string              // Offending response frame, if any
	Retryable      bool                // Whether the error is retryable
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes a socket error and returns a typed error
func ClassifyNetworkError(err error, deviceIP string) *DeviceError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &DeviceError{
			Type:     ErrTypeCanceled,
			Message:  "Exchange canceled",
			Err:      err,
			DeviceIP: deviceIP,
		}
	}

	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return &DeviceError{
			Type:           ErrTypeTimeout,
			Message:        "No response from charger",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			DeviceIP:       deviceIP,
			Retryable:      true,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return &DeviceError{
				Type:           ErrTypeConnectionRefused,
				Message:        "Charger port unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				DeviceIP:       deviceIP,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.EHOSTUNREACH) {
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				DeviceIP:       deviceIP,
				Retryable:      true,
			}
		}
		if errors.Is(opErr.Err, syscall.ENETUNREACH) {
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				DeviceIP:       deviceIP,
				Retryable:      true,
			}
		}
	}

	return &DeviceError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		DeviceIP:       deviceIP,
		Retryable:      true,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *DeviceError {
	classified := ClassifyNetworkError(err, "")
	if classified != nil {
		classified.Message = message
		return classified
	}
	return &DeviceError{
		Type:      ErrTypeNetwork,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// NewDecodeError creates an error for a response that could not be decoded
func NewDecodeError(message, frame string) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeDecode,
		Message:   message,
		Frame:     frame,
		Retryable: true,
	}
}

// NewAccessDeniedError creates an error for a request the charger rejected
func NewAccessDeniedError(deviceIP string) *DeviceError {
	return &DeviceError{
		Type:     ErrTypeAccessDenied,
		Message:  "Charger denied request",
		DeviceIP: deviceIP,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeValidation,
		Message: message,
		Err:     err,
	}
}

func errorType(err error) (ErrorType, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Type, true
	}
	return ErrTypeUnknown, false
}

// IsNetworkError checks if an error is a network error (including timeout and refused)
func IsNetworkError(err error) bool {
	t, ok := errorType(err)
	return ok && (t == ErrTypeNetwork || t == ErrTypeTimeout || t == ErrTypeConnectionRefused)
}

// IsTimeout checks if the charger did not answer in time
func IsTimeout(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeTimeout
}

// IsDecodeError checks if an error is a decode error
func IsDecodeError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeDecode
}

// IsAccessDenied checks if the charger rejected the request
func IsAccessDenied(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeAccessDenied
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeValidation
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Retryable
	}
	// Unknown errors are not retryable by default
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	if errors.Is(err, ErrChargerUnplugged) {
		return "The charger reports no vehicle connected. Plug in the vehicle and try again."
	}
	if errors.Is(err, ErrStateUnknown) {
		return "The charger state has not been read yet. Run 'benyctl status' first."
	}

	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The charger did not respond in time.",
			"Troubleshooting:",
			"  • Check that the charger is powered on and joined to WiFi",
			"  • Verify the IP address (run 'benyctl scan')",
			"  • The charger answers on UDP port 3333 by default",
			"  • Try increasing --timeout",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The charger host rejected the datagram (port unreachable).",
			"Troubleshooting:",
			"  • Verify the port number (default is 3333)",
			"  • Check that the address belongs to the charger",
		}, "\n")

	case ErrTypeAccessDenied:
		return strings.Join([]string{
			"The charger denied the request.",
			"Troubleshooting:",
			"  • The PIN may have changed, reconfigure it with 'benyctl add --pin'",
			"  • Check the PIN in the Beny app",
		}, "\n")

	case ErrTypeNetwork:
		hint := []string{"Network communication failed."}

		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			hint = append(hint, "The charger is not reachable on the network.",
				"Troubleshooting:",
				"  • Verify the charger IP address is correct",
				"  • Check that you're on the same network as the charger",
				"  • Try pinging the charger: ping "+devErr.DeviceIP)

		case NetworkErrorNetworkUnreachable:
			hint = append(hint, "Your computer cannot reach the charger's network.",
				"Troubleshooting:",
				"  • Check your network adapter settings",
				"  • Verify WiFi or Ethernet is connected")

		default:
			hint = append(hint, "Troubleshooting:",
				"  • Check your network connection",
				"  • Verify the charger is powered on")
		}

		return strings.Join(hint, "\n")

	case ErrTypeDecode:
		return strings.Join([]string{
			"The charger's response could not be decoded.",
			"UDP datagrams can be corrupted in transit; try again.",
			"If it keeps failing, run with --log-level debug and report the frame.",
		}, "\n")

	case ErrTypeValidation:
		return "The command parameters are invalid. Check the error message for details."

	case ErrTypeCanceled:
		return "The operation was canceled."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return "Charger not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Charger port unreachable"
	case ErrTypeAccessDenied:
		return "Charger denied request - reconfigure PIN"
	case ErrTypeNetwork:
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Charger unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check connection"
		default:
			return "Network error - check connection"
		}
	case ErrTypeDecode:
		return "Failed to decode charger response"
	case ErrTypeCanceled:
		return "Canceled"
	default:
		return devErr.Message
	}
}
