package charger

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/benywifi/beny/internal/protocol"
)

const (
	// DefaultPort is the charger's UDP control port
	DefaultPort = protocol.DefaultPort

	// DefaultTimeout bounds one request/response exchange
	DefaultTimeout = 5 * time.Second
)

// StateProvider supplies the last known charger state for the unplugged
// guard. The poller implements it.
type StateProvider interface {
	LastState() (protocol.ChargerState, bool)
}

// Observer is notified after every exchange. The metrics package implements
// it.
type Observer interface {
	ObserveExchange(operation string, duration time.Duration, err error)
}

// Client talks to one charger. Each call is a single UDP request followed by
// a single response; the client holds no socket between calls.
type Client struct {
	// IP is the charger's IPv4 address
	IP string

	// Port is the charger's UDP port (default 3333)
	Port int

	pin      string
	timeout  time.Duration
	log      *zap.Logger
	decoder  *protocol.Decoder
	now      func() time.Time
	state    StateProvider
	observer Observer

	// lastState is tracked from this client's own readings and used by the
	// guard when no StateProvider is configured.
	mu        sync.RWMutex
	lastState *protocol.ChargerState
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger. The default is silent.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithTimeout overrides the 5 second response timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPIN sets the PIN passed with every request.
func WithPIN(pin string) Option {
	return func(c *Client) { c.pin = pin }
}

// WithClock replaces time.Now for timer derivation.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStateProvider makes guarded commands consult p instead of the
// client's own last reading.
func WithStateProvider(p StateProvider) Option {
	return func(c *Client) { c.state = p }
}

// WithObserver reports exchange outcomes to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a client for the charger at ip:port.
// port: UDP port, 0 selects DefaultPort
func NewClient(ip string, port int, opts ...Option) *Client {
	if port == 0 {
		port = DefaultPort
	}
	c := &Client{
		IP:      ip,
		Port:    port,
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("charger", c.Addr()))
	c.decoder = protocol.NewDecoder(c.log)
	return c
}

// Addr returns the charger's host:port.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// Timeout returns the per-exchange timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// LastState returns the state from this client's most recent reading.
func (c *Client) LastState() (protocol.ChargerState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastState == nil {
		return 0, false
	}
	return *c.lastState, true
}

// FetchReading requests the current measurements (REQUEST_DATA VALUES).
func (c *Client) FetchReading(ctx context.Context) (*Reading, error) {
	msg, err := c.request(ctx, "fetch_reading", protocol.MessageRequestData,
		protocol.RequestDataParams(protocol.RequestValues), protocol.MessageSendValues)
	if err != nil {
		c.log.Error("Failed to fetch data", zap.Error(err))
		return nil, err
	}

	r := readingFromMessage(msg, c.now())
	c.mu.Lock()
	state := r.State
	c.lastState = &state
	c.mu.Unlock()

	c.log.Debug("Reading received",
		zap.String("state", r.ChargerState),
		zap.Float64("power_kw", r.Power),
		zap.Float64("total_kwh", r.TotalKWh),
	)
	return r, nil
}

// FetchModel requests the charger model string (REQUEST_DATA MODEL).
func (c *Client) FetchModel(ctx context.Context) (string, error) {
	msg, err := c.request(ctx, "fetch_model", protocol.MessageRequestData,
		protocol.RequestDataParams(protocol.RequestModel), protocol.MessageSendModel)
	if err != nil {
		return "", err
	}
	return msg.Str("model"), nil
}

// ToggleCharging starts or stops a charging session. It is skipped with
// ErrChargerUnplugged when no vehicle is connected.
func (c *Client) ToggleCharging(ctx context.Context, cmd protocol.ChargerCommand) error {
	if !cmd.Valid() {
		return NewValidationError(fmt.Sprintf("invalid charger command %d", cmd), nil)
	}
	if err := c.guard(ctx); err != nil {
		return err
	}
	if err := c.command(ctx, "toggle_charging", protocol.MessageSendChargerCommand, protocol.ChargerCommandParams(cmd)); err != nil {
		return err
	}
	c.log.Info("Charging command sent", zap.Stringer("command", cmd))
	return nil
}

// SetTimer sets the one-shot charging timer. end may be nil for a timer
// with only a start time.
func (c *Client) SetTimer(ctx context.Context, start protocol.TimeOfDay, end *protocol.TimeOfDay) error {
	if err := ValidateTimer(start, end); err != nil {
		return err
	}
	if err := c.guard(ctx); err != nil {
		return err
	}
	if err := c.command(ctx, "set_timer", protocol.MessageSetTimer, protocol.TimerParams(start, end)); err != nil {
		return err
	}
	c.log.Info("Charging timer set", zap.Stringer("start", start))
	return nil
}

// ResetTimer clears the charging timer.
func (c *Client) ResetTimer(ctx context.Context) error {
	if err := c.guard(ctx); err != nil {
		return err
	}
	if err := c.command(ctx, "reset_timer", protocol.MessageResetTimer, protocol.Params{}); err != nil {
		return err
	}
	c.log.Info("Charging timer reset")
	return nil
}

// SetSchedule sets the weekly charging schedule.
func (c *Client) SetSchedule(ctx context.Context, days protocol.Weekdays, start, end protocol.TimeOfDay) error {
	if err := ValidateSchedule(start, end); err != nil {
		return err
	}
	if err := c.command(ctx, "set_schedule", protocol.MessageSetSchedule, protocol.ScheduleParams(days, start, end)); err != nil {
		return err
	}
	c.log.Info("Charging schedule set", zap.Stringer("weekdays", days))
	return nil
}

// SetMaxMonthlyConsumption caps monthly energy in kWh (0-65535).
func (c *Client) SetMaxMonthlyConsumption(ctx context.Context, kwh int) error {
	if err := ValidateMonthlyConsumption(kwh); err != nil {
		return err
	}
	params := protocol.Params{"maximum_consumption": protocol.HexWord(kwh)}
	if err := c.command(ctx, "set_max_monthly_consumption", protocol.MessageSetMaxMonthlyConsumption, params); err != nil {
		return err
	}
	c.log.Info("Maximum monthly consumption set", zap.Int("kwh", kwh))
	return nil
}

// SetMaxSessionConsumption caps energy per session in kWh (0-255).
func (c *Client) SetMaxSessionConsumption(ctx context.Context, kwh int) error {
	if err := ValidateSessionConsumption(kwh); err != nil {
		return err
	}
	params := protocol.Params{"maximum_consumption": protocol.HexByte(kwh)}
	if err := c.command(ctx, "set_max_session_consumption", protocol.MessageSetMaxSessionConsumption, params); err != nil {
		return err
	}
	c.log.Info("Maximum session consumption set", zap.Int("kwh", kwh))
	return nil
}

// RequestSchedule reads the weekly schedule (REQUEST_SETTINGS).
func (c *Client) RequestSchedule(ctx context.Context) (*Schedule, error) {
	msg, err := c.request(ctx, "request_schedule", protocol.MessageRequestSettings,
		protocol.Params{}, protocol.MessageSendSettings)
	if err != nil {
		return nil, err
	}
	c.log.Info("Requested weekly schedule")
	return scheduleFromMessage(msg), nil
}

// guard refuses commands while the charger is unplugged. Without a state
// provider or a previous reading, the state is fetched first.
func (c *Client) guard(ctx context.Context) error {
	var (
		state protocol.ChargerState
		known bool
	)
	if c.state != nil {
		state, known = c.state.LastState()
	} else {
		state, known = c.LastState()
		if !known {
			r, err := c.FetchReading(ctx)
			if err != nil {
				return fmt.Errorf("determine charger state: %w", err)
			}
			state, known = r.State, true
		}
	}

	if !known {
		c.log.Warn("Command skipped, charger state unknown")
		return ErrStateUnknown
	}
	if state == protocol.StateUnplugged {
		c.log.Warn("Command skipped, charger unplugged")
		return ErrChargerUnplugged
	}
	return nil
}
