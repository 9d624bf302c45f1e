package charger

import (
	"fmt"

	"github.com/benywifi/beny/internal/protocol"
)

const (
	// MaxMonthlyConsumption is the largest value that fits the four digit field.
	MaxMonthlyConsumption = 0xffff
	// MaxSessionConsumption is the largest value that fits the two digit field.
	MaxSessionConsumption = 0xff
)

// ValidateMonthlyConsumption checks a monthly cap in kWh.
func ValidateMonthlyConsumption(kwh int) error {
	if kwh < 0 || kwh > MaxMonthlyConsumption {
		return NewValidationError(fmt.Sprintf("monthly consumption must be 0-%d kWh, got %d", MaxMonthlyConsumption, kwh), nil)
	}
	return nil
}

// ValidateSessionConsumption checks a per-session cap in kWh.
func ValidateSessionConsumption(kwh int) error {
	if kwh < 0 || kwh > MaxSessionConsumption {
		return NewValidationError(fmt.Sprintf("session consumption must be 0-%d kWh, got %d", MaxSessionConsumption, kwh), nil)
	}
	return nil
}

// ValidateTimer checks the timer's times of day.
func ValidateTimer(start protocol.TimeOfDay, end *protocol.TimeOfDay) error {
	if err := start.Validate(); err != nil {
		return NewValidationError("invalid timer start", err)
	}
	if end != nil {
		if err := end.Validate(); err != nil {
			return NewValidationError("invalid timer end", err)
		}
	}
	return nil
}

// ValidateSchedule checks the schedule's times of day.
func ValidateSchedule(start, end protocol.TimeOfDay) error {
	if err := start.Validate(); err != nil {
		return NewValidationError("invalid schedule start", err)
	}
	if err := end.Validate(); err != nil {
		return NewValidationError("invalid schedule end", err)
	}
	return nil
}
