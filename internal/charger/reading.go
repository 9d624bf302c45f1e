package charger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/benywifi/beny/internal/protocol"
)

// NotSet is how an unset timer is rendered.
const NotSet = "not_set"

// Reading is one decoded SEND_VALUES response. Power is in kW and energy in
// kWh; the decoder has already applied the fixed point scaling.
type Reading struct {
	State        protocol.ChargerState `json:"state"`
	ChargerState string                `json:"charger_state"`
	TimerState   protocol.TimerState   `json:"timer_state"`

	Current1 int `json:"current1"`
	Current2 int `json:"current2"`
	Current3 int `json:"current3"`
	Voltage1 int `json:"voltage1"`
	Voltage2 int `json:"voltage2"`
	Voltage3 int `json:"voltage3"`

	Power      float64 `json:"power"`
	TotalKWh   float64 `json:"total_kwh"`
	MaxCurrent int     `json:"max_current"`

	MaximumSessionConsumption int `json:"maximum_session_consumption"`

	TimerStartHour   int `json:"timer_start_h"`
	TimerStartMinute int `json:"timer_start_min"`
	TimerEndHour     int `json:"timer_end_h"`
	TimerEndMinute   int `json:"timer_end_min"`

	// TimerStart and TimerEnd are nil when the timer does not carry them.
	TimerStart *time.Time `json:"-"`
	TimerEnd   *time.Time `json:"-"`

	UpdatedAt time.Time `json:"updated_at"`
}

// MarshalJSON renders unset timers as "not_set".
func (r Reading) MarshalJSON() ([]byte, error) {
	type plain Reading
	return json.Marshal(struct {
		plain
		TimerStart any `json:"timer_start"`
		TimerEnd   any `json:"timer_end"`
	}{
		plain:      plain(r),
		TimerStart: timerValue(r.TimerStart),
		TimerEnd:   timerValue(r.TimerEnd),
	})
}

func timerValue(t *time.Time) any {
	if t == nil {
		return NotSet
	}
	return t.Format(time.RFC3339)
}

// Phases returns the phase measurements in order, for display.
func (r *Reading) Phases() [3]Phase {
	return [3]Phase{
		{Voltage: r.Voltage1, Current: r.Current1},
		{Voltage: r.Voltage2, Current: r.Current2},
		{Voltage: r.Voltage3, Current: r.Current3},
	}
}

// Phase is the voltage and current of one supply phase.
type Phase struct {
	Voltage int
	Current int
}

// Summary returns a one-line description of the reading.
func (r *Reading) Summary() string {
	return fmt.Sprintf("%s, %.1f kW, %.1f kWh total, timer %s",
		r.ChargerState, r.Power, r.TotalKWh, r.TimerSummary())
}

// TimerSummary renders the timer window, e.g. "08:00 → 07:30".
func (r *Reading) TimerSummary() string {
	if r.TimerStart == nil && r.TimerEnd == nil {
		return NotSet
	}
	start, end := NotSet, NotSet
	if r.TimerStart != nil {
		start = r.TimerStart.Format("Mon 15:04")
	}
	if r.TimerEnd != nil {
		end = r.TimerEnd.Format("Mon 15:04")
	}
	return start + " → " + end
}

// readingFromMessage builds a Reading from a SEND_VALUES message and
// derives timer timestamps relative to now.
func readingFromMessage(msg *protocol.Message, now time.Time) *Reading {
	state, _ := protocol.Value[protocol.ChargerState](msg, "state")
	timer, _ := protocol.Value[protocol.TimerState](msg, "timer_state")

	r := &Reading{
		State:                     state,
		ChargerState:              state.Label(),
		TimerState:                timer,
		Current1:                  msg.Int("current1"),
		Current2:                  msg.Int("current2"),
		Current3:                  msg.Int("current3"),
		Voltage1:                  msg.Int("voltage1"),
		Voltage2:                  msg.Int("voltage2"),
		Voltage3:                  msg.Int("voltage3"),
		Power:                     msg.Float("power"),
		TotalKWh:                  msg.Float("total_kwh"),
		MaxCurrent:                msg.Int("max_current"),
		MaximumSessionConsumption: msg.Int("maximum_session_consumption"),
		TimerStartHour:            msg.Int("timer_start_h"),
		TimerStartMinute:          msg.Int("timer_start_min"),
		TimerEndHour:              msg.Int("timer_end_h"),
		TimerEndMinute:            msg.Int("timer_end_min"),
		UpdatedAt:                 now,
	}

	r.TimerStart, r.TimerEnd = TimerWindow(timer,
		protocol.TimeOfDay{Hour: r.TimerStartHour, Minute: r.TimerStartMinute},
		protocol.TimeOfDay{Hour: r.TimerEndHour, Minute: r.TimerEndMinute},
		now)
	return r
}

// TimerWindow turns the timer fields into the next concrete start and end
// instants after now. A time of day already past today rolls to tomorrow,
// and an end at or before the start rolls one more day.
func TimerWindow(state protocol.TimerState, start, end protocol.TimeOfDay, now time.Time) (*time.Time, *time.Time) {
	var startAt, endAt *time.Time

	if state.HasStart() {
		t := nextOccurrence(start, now)
		startAt = &t
	}
	if state.HasEnd() {
		t := nextOccurrence(end, now)
		if startAt != nil && !t.After(*startAt) {
			t = t.AddDate(0, 0, 1)
		}
		endAt = &t
	}
	return startAt, endAt
}

func nextOccurrence(tod protocol.TimeOfDay, now time.Time) time.Time {
	t := tod.On(now)
	if t.Before(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// Schedule is the weekly charging schedule read back from the charger.
type Schedule struct {
	Schedule  string             `json:"schedule"`
	Weekdays  protocol.Weekdays  `json:"weekdays"`
	StartTime string             `json:"start_time"`
	EndTime   string             `json:"end_time"`
	Start     protocol.TimeOfDay `json:"-"`
	End       protocol.TimeOfDay `json:"-"`
}

// Enabled reports whether any weekday is selected.
func (s *Schedule) Enabled() bool { return s.Weekdays.Any() }

// scheduleFromMessage builds a Schedule from SEND_SETTINGS. StartTime and
// EndTime keep the charger's unpadded "H:M" form.
func scheduleFromMessage(msg *protocol.Message) *Schedule {
	days, _ := protocol.Value[protocol.Weekdays](msg, "weekdays")
	s := &Schedule{
		Schedule: msg.Str("schedule"),
		Weekdays: days,
		Start:    protocol.TimeOfDay{Hour: msg.Int("timer_start_h"), Minute: msg.Int("timer_start_min")},
		End:      protocol.TimeOfDay{Hour: msg.Int("timer_end_h"), Minute: msg.Int("timer_end_min")},
	}
	s.StartTime = fmt.Sprintf("%d:%d", s.Start.Hour, s.Start.Minute)
	s.EndTime = fmt.Sprintf("%d:%d", s.End.Hour, s.End.Minute)
	return s
}
