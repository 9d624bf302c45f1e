// Package ui renders benyctl's terminal output with Lip Gloss and runs the
// Bubble Tea dashboard behind "benyctl watch".
//
// # Components
//
//   - Header: command banner with the command name and its target charger
//   - Result: success, warning and failure boxes; failures carry
//     troubleshooting tips from the charger package
//   - Reading panel: state badge, power, energy, timer and phase rows
//   - Schedule and device panels for get-schedule and scan
//   - DashboardModel: live view with refresh, start and stop key bindings
//
// One-shot commands print through a Printer so tests can capture output:
//
//	p := ui.NewPrinter(os.Stdout)
//	p.PrintHeader("Charger status", "benyctl status", ui.D("Charger", addr))
//	p.Println(ui.RenderReading(reading, 0, p.Width()))
//
// # Phases
//
// Single phase chargers report zero for the second and third phase. The
// configured phase count decides which rows are shown; when it is unknown
// a nonzero second voltage implies three phases.
//
// # Logging Integration
//
// Commands keep zap logging quiet unless --log-level is given, so the
// rendered output is not interleaved with log lines.
package ui
