package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/benywifi/beny/internal/charger"
	"github.com/benywifi/beny/internal/discovery"
)

// ShowPhases reports whether phase 2 and 3 rows belong in the display.
// phases is the configured phase count; 0 means unknown, in which case a
// nonzero second voltage decides.
func ShowPhases(r *charger.Reading, phases int) bool {
	switch phases {
	case 1:
		return false
	case 3:
		return true
	default:
		return r.Voltage2 > 0
	}
}

// ReadingDetails returns the reading as ordered display rows.
func ReadingDetails(r *charger.Reading, phases int) []Detail {
	details := []Detail{
		D("Power", fmt.Sprintf("%.1f kW", r.Power)),
		D("Total energy", fmt.Sprintf("%.1f kWh", r.TotalKWh)),
		D("Max current", fmt.Sprintf("%d A", r.MaxCurrent)),
		D("Session limit", sessionLimit(r.MaximumSessionConsumption)),
		D("Timer", r.TimerSummary()),
	}

	all := r.Phases()
	count := 1
	if ShowPhases(r, phases) {
		count = 3
	}
	for i := 0; i < count; i++ {
		details = append(details, D(fmt.Sprintf("L%d", i+1),
			fmt.Sprintf("%d V  %d A", all[i].Voltage, all[i].Current)))
	}
	return details
}

func sessionLimit(kwh int) string {
	if kwh == 0 {
		return "none"
	}
	return fmt.Sprintf("%d kWh", kwh)
}

// RenderReading renders a reading panel: state badge, then measurements.
func RenderReading(r *charger.Reading, phases int, width int) string {
	width = clampWidth(width)

	lines := []string{
		StateBadge(r.State),
		"",
	}
	lines = append(lines, RenderDetails(ReadingDetails(r, phases), "")...)
	lines = append(lines, "",
		lipgloss.NewStyle().Foreground(MutedColor).Render("Updated "+r.UpdatedAt.Format(time.DateTime)))

	return PanelStyle(width).Render(strings.Join(lines, "\n"))
}

// RenderSchedule renders the weekly charging schedule.
func RenderSchedule(s *charger.Schedule, width int) string {
	width = clampWidth(width)

	title := SectionTitleStyle.Render("Weekly schedule")
	if !s.Enabled() {
		return PanelStyle(width).Render(title + "\n\n" + ResultValueStyle.Render("No days enabled"))
	}

	lines := []string{title, ""}
	lines = append(lines, RenderDetails([]Detail{
		D("Days", s.Weekdays.String()),
		D("Start", s.Start.String()),
		D("End", s.End.String()),
	}, "")...)
	return PanelStyle(width).Render(strings.Join(lines, "\n"))
}

// RenderDevices renders discovered chargers as a table.
func RenderDevices(devices []*discovery.Device, width int) string {
	width = clampWidth(width)

	if len(devices) == 0 {
		return PanelStyle(width).Render(
			lipgloss.NewStyle().Foreground(MutedColor).Render("No chargers found"))
	}

	rows := [][3]string{{"SERIAL", "ADDRESS", "MODEL"}}
	for _, d := range devices {
		model := d.Model
		if model == "" {
			model = "-"
		}
		rows = append(rows, [3]string{d.Serial, d.Addr(), model})
	}

	// Columns fit their widest cell plus a two space gutter
	var widths [3]int
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell)+2)
		}
	}

	lines := make([]string, 0, len(rows))
	for n, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			style := lipgloss.NewStyle().Width(widths[i])
			if n == 0 {
				style = style.Foreground(MutedColor).Bold(true)
			}
			line.WriteString(style.Render(cell))
		}
		lines = append(lines, line.String())
	}
	return PanelStyle(width).Render(strings.Join(lines, "\n"))
}
