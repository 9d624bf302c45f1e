package charger

import (
	"testing"

	"github.com/benywifi/beny/internal/protocol"
)

func TestValidateConsumption(t *testing.T) {
	tests := []struct {
		name     string
		validate func(int) error
		kwh      int
		wantErr  bool
	}{
		{"monthly zero", ValidateMonthlyConsumption, 0, false},
		{"monthly max", ValidateMonthlyConsumption, 65535, false},
		{"monthly over", ValidateMonthlyConsumption, 65536, true},
		{"monthly negative", ValidateMonthlyConsumption, -5, true},
		{"session max", ValidateSessionConsumption, 255, false},
		{"session over", ValidateSessionConsumption, 256, true},
		{"session negative", ValidateSessionConsumption, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validate(tt.kwh)
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidationError(err) {
				t.Errorf("error type = %T, want validation error", err)
			}
		})
	}
}

func TestValidateTimer(t *testing.T) {
	ok := protocol.TimeOfDay{Hour: 23, Minute: 59}
	bad := protocol.TimeOfDay{Hour: 24}

	if err := ValidateTimer(ok, nil); err != nil {
		t.Errorf("ValidateTimer(23:59, nil) error = %v", err)
	}
	if err := ValidateTimer(ok, &ok); err != nil {
		t.Errorf("ValidateTimer(23:59, 23:59) error = %v", err)
	}
	if err := ValidateTimer(bad, nil); !IsValidationError(err) {
		t.Errorf("ValidateTimer(24:00, nil) error = %v, want validation error", err)
	}
	if err := ValidateTimer(ok, &bad); !IsValidationError(err) {
		t.Errorf("ValidateTimer(23:59, 24:00) error = %v, want validation error", err)
	}
}

func TestValidateSchedule(t *testing.T) {
	if err := ValidateSchedule(protocol.TimeOfDay{Hour: 22}, protocol.TimeOfDay{Hour: 6}); err != nil {
		t.Errorf("ValidateSchedule() error = %v", err)
	}
	if err := ValidateSchedule(protocol.TimeOfDay{Minute: 60}, protocol.TimeOfDay{}); !IsValidationError(err) {
		t.Errorf("ValidateSchedule() error = %v, want validation error", err)
	}
}
