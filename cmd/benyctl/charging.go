package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/benywifi/beny/internal/charger"
	"github.com/benywifi/beny/internal/config"
	"github.com/benywifi/beny/internal/protocol"
	"github.com/benywifi/beny/internal/ui"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(setTimerCmd)
	rootCmd.AddCommand(resetTimerCmd)
	rootCmd.AddCommand(setScheduleCmd)
	rootCmd.AddCommand(getScheduleCmd)
	rootCmd.AddCommand(setMaxMonthlyCmd)
	rootCmd.AddCommand(setMaxSessionCmd)
}

// statusCmd reads the charger's live values
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the charger's current values",
	Long: `Request the charger's values: state, power, energy, phase voltages and
currents, maximum current, session limit and timer.

Timer times are shown as the next moment they occur; an end time at or
before the start time falls on the following day.`,
	Example: `  # Default charger
  benyctl status

  # A specific charger, as JSON
  benyctl status --charger garage --format json`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}

	reading, err := newClient(t).FetchReading(cmd.Context())
	if err != nil {
		return fail(cmd, "Could not read charger "+t.Label(), err)
	}
	touchLastSeen(t)

	if outputFormat == formatJSON {
		return printJSON(cmd, reading)
	}
	p := printer(cmd)
	p.PrintHeader("Charger status", "benyctl status", ui.D("Charger", t.Label()), ui.D("Address", t.Addr()))
	p.Println(ui.RenderReading(reading, t.Phases, p.Width()))
	return nil
}

// modelCmd requests the model string
var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Show the charger's model",
	RunE:  runModel,
}

func runModel(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}

	model, err := newClient(t).FetchModel(cmd.Context())
	if err != nil {
		return fail(cmd, "Could not read model of "+t.Label(), err)
	}
	rememberModel(t, model)

	if outputFormat == formatJSON {
		return printJSON(cmd, map[string]string{"model": model})
	}
	printer(cmd).PrintSuccess("Charger model", ui.D("Charger", t.Label()), ui.D("Model", model))
	return nil
}

// rememberModel stores a changed model string for a registered charger.
func rememberModel(t *target, model string) {
	reg, err := config.LoadRegistry()
	if err != nil || t.Serial == "" {
		return
	}
	if c := reg.GetCharger(t.Serial); c != nil && c.Model != model {
		c.Model = model
		_ = reg.Save()
	}
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start charging",
	Long: `Tell the charger to start charging. The charger's state is read first;
nothing is sent while no vehicle is plugged in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle(cmd, protocol.CommandStart)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop charging",
	Long: `Tell the charger to stop charging. The charger's state is read first;
nothing is sent while no vehicle is plugged in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle(cmd, protocol.CommandStop)
	},
}

func runToggle(cmd *cobra.Command, action protocol.ChargerCommand) error {
	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}

	verb := "started"
	if action == protocol.CommandStop {
		verb = "stopped"
	}

	if err := newClient(t).ToggleCharging(cmd.Context(), action); err != nil {
		return fail(cmd, "Charging not "+verb, err)
	}
	return done(cmd, "Charging "+verb, t)
}

// done reports a successful command.
func done(cmd *cobra.Command, title string, t *target, details ...ui.Detail) error {
	touchLastSeen(t)
	if outputFormat == formatJSON {
		out := map[string]string{"result": "ok", "charger": t.Label()}
		for _, d := range details {
			out[d.Key] = d.Value
		}
		return printJSON(cmd, out)
	}
	printer(cmd).PrintSuccess(title, append([]ui.Detail{ui.D("Charger", t.Label())}, details...)...)
	return nil
}

var setTimerCmd = &cobra.Command{
	Use:   "set-timer <start> [end]",
	Short: "Set the charging timer",
	Long: `Set a one-off charging window. Times are HH:MM in the charger's local
time. Without an end time the charger charges from start until the
vehicle is full.`,
	Example: `  # Charge from 01:00 until full
  benyctl set-timer 01:00

  # Charge from 22:30 to 06:00 the next morning
  benyctl set-timer 22:30 06:00`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSetTimer,
}

func runSetTimer(cmd *cobra.Command, args []string) error {
	start, err := protocol.ParseTimeOfDay(args[0])
	if err != nil {
		return fmt.Errorf("invalid start time: %w", err)
	}
	var end *protocol.TimeOfDay
	if len(args) == 2 {
		e, err := protocol.ParseTimeOfDay(args[1])
		if err != nil {
			return fmt.Errorf("invalid end time: %w", err)
		}
		end = &e
	}
	if err := charger.ValidateTimer(start, end); err != nil {
		return err
	}

	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}
	if err := newClient(t).SetTimer(cmd.Context(), start, end); err != nil {
		return fail(cmd, "Timer not set", err)
	}

	window := start.String() + " until full"
	if end != nil {
		window = start.String() + " → " + end.String()
	}
	return done(cmd, "Timer set", t, ui.D("Timer", window))
}

var resetTimerCmd = &cobra.Command{
	Use:   "reset-timer",
	Short: "Clear the charging timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget(cmd)
		if err != nil {
			return err
		}
		if err := newClient(t).ResetTimer(cmd.Context()); err != nil {
			return fail(cmd, "Timer not cleared", err)
		}
		return done(cmd, "Timer cleared", t)
	},
}

var setScheduleCmd = &cobra.Command{
	Use:   "set-schedule <days> <start> <end>",
	Short: "Set the weekly charging schedule",
	Long: `Set the days and the daily window the charger charges in.

Days are a comma separated list of day names or abbreviations, or one of
all, weekdays, weekend or none.`,
	Example: `  # Weeknights from 23:00 to 06:30
  benyctl set-schedule weekdays 23:00 06:30

  # Saturday and Sunday afternoons
  benyctl set-schedule sat,sun 12:00 16:00

  # Disable the schedule
  benyctl set-schedule none 00:00 00:00`,
	Args: cobra.ExactArgs(3),
	RunE: runSetSchedule,
}

func runSetSchedule(cmd *cobra.Command, args []string) error {
	days, err := protocol.ParseWeekdays(args[0])
	if err != nil {
		return err
	}
	start, err := protocol.ParseTimeOfDay(args[1])
	if err != nil {
		return fmt.Errorf("invalid start time: %w", err)
	}
	end, err := protocol.ParseTimeOfDay(args[2])
	if err != nil {
		return fmt.Errorf("invalid end time: %w", err)
	}
	if err := charger.ValidateSchedule(start, end); err != nil {
		return err
	}

	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}
	if err := newClient(t).SetSchedule(cmd.Context(), days, start, end); err != nil {
		return fail(cmd, "Schedule not set", err)
	}
	return done(cmd, "Schedule set", t,
		ui.D("Days", days.String()),
		ui.D("Window", start.String()+" → "+end.String()))
}

var getScheduleCmd = &cobra.Command{
	Use:   "get-schedule",
	Short: "Show the weekly charging schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := resolveTarget(cmd)
		if err != nil {
			return err
		}
		schedule, err := newClient(t).RequestSchedule(cmd.Context())
		if err != nil {
			return fail(cmd, "Could not read schedule", err)
		}
		touchLastSeen(t)

		if outputFormat == formatJSON {
			return printJSON(cmd, schedule)
		}
		p := printer(cmd)
		p.PrintHeader("Charging schedule", "benyctl get-schedule", ui.D("Charger", t.Label()))
		p.Println(ui.RenderSchedule(schedule, p.Width()))
		return nil
	},
}

var setMaxMonthlyCmd = &cobra.Command{
	Use:   "set-max-monthly <kwh>",
	Short: "Set the monthly consumption limit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetLimit(cmd, args[0], "Monthly limit", charger.ValidateMonthlyConsumption,
			(*charger.Client).SetMaxMonthlyConsumption)
	},
}

var setMaxSessionCmd = &cobra.Command{
	Use:   "set-max-session <kwh>",
	Short: "Set the per-session consumption limit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetLimit(cmd, args[0], "Session limit", charger.ValidateSessionConsumption,
			(*charger.Client).SetMaxSessionConsumption)
	},
}

func runSetLimit(
	cmd *cobra.Command,
	arg, label string,
	validate func(int) error,
	set func(*charger.Client, context.Context, int) error,
) error {
	kwh, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("invalid kWh value %q", arg)
	}
	if err := validate(kwh); err != nil {
		return err
	}

	t, err := resolveTarget(cmd)
	if err != nil {
		return err
	}
	if err := set(newClient(t), cmd.Context(), kwh); err != nil {
		return fail(cmd, label+" not set", err)
	}
	return done(cmd, label+" set", t, ui.D(label, fmt.Sprintf("%d kWh", kwh)))
}
