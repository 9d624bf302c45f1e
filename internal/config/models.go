package config

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPort is the chargers' UDP control port
	DefaultPort = 3333
	// DefaultPollInterval is the poll interval in seconds
	DefaultPollInterval = 30
	// DefaultDiscoverTimeout is the discovery timeout in seconds
	DefaultDiscoverTimeout = 3
)

// Registry represents the entire user configuration file.
// It stores the chargers the user has registered and application preferences.
type Registry struct {
	Version     int                 `yaml:"version"`
	Chargers    map[string]*Charger `yaml:"chargers,omitempty"` // Keyed by charger serial number
	Preferences *Preferences        `yaml:"preferences,omitempty"`
}

// Charger is one registered charger, keyed by serial number in the Registry.
type Charger struct {
	Name         string    `yaml:"name,omitempty"`          // User-friendly name
	IP           string    `yaml:"ip"`                      // IPv4 address
	Port         int       `yaml:"port,omitempty"`          // UDP port, 0 means DefaultPort
	PIN          string    `yaml:"pin,omitempty"`           // PIN sent with every request
	Model        string    `yaml:"model,omitempty"`         // Model string from the charger (e.g., "BCP-AT1N-L")
	Phases       int       `yaml:"phases,omitempty"`        // 1 or 3; 0 means infer from readings
	DLB          bool      `yaml:"dlb,omitempty"`           // Dynamic load balancing installed
	PollInterval int       `yaml:"poll_interval,omitempty"` // Seconds, 0 means the preference
	LastSeen     time.Time `yaml:"last_seen,omitempty"`     // Last discovery/successful exchange
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultPort     int    `yaml:"default_port"`             // UDP port for new chargers
	PollInterval    int    `yaml:"poll_interval"`            // Default poll interval in seconds
	DiscoverTimeout int    `yaml:"discover_timeout"`         // Broadcast discovery timeout in seconds
	DefaultCharger  string `yaml:"default_charger,omitempty"` // Serial used when --charger is omitted
}

func defaultPreferences() *Preferences {
	return &Preferences{
		DefaultPort:     DefaultPort,
		PollInterval:    DefaultPollInterval,
		DiscoverTimeout: DefaultDiscoverTimeout,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Chargers:    make(map[string]*Charger),
		Preferences: defaultPreferences(),
	}
}

// GetCharger retrieves a charger by serial number.
// Returns nil if the charger isn't registered.
func (r *Registry) GetCharger(serial string) *Charger {
	return r.Chargers[serial]
}

// EnsureCharger ensures a charger entry exists in the registry.
// Returns the entry (existing or newly created).
func (r *Registry) EnsureCharger(serial string) *Charger {
	if r.Chargers == nil {
		r.Chargers = make(map[string]*Charger)
	}

	if c, exists := r.Chargers[serial]; exists {
		return c
	}

	c := &Charger{}
	if r.Preferences != nil && r.Preferences.DefaultPort != DefaultPort {
		c.Port = r.Preferences.DefaultPort
	}
	r.Chargers[serial] = c
	return c
}

// UpdateChargerLastSeen records where a charger was last seen.
func (r *Registry) UpdateChargerLastSeen(serial, ip string, port int) {
	c := r.EnsureCharger(serial)
	c.LastSeen = time.Now()
	c.IP = ip
	if port != 0 && port != DefaultPort {
		c.Port = port
	}
}

// SetChargerName sets a user-friendly name for a charger.
func (r *Registry) SetChargerName(serial, name string) {
	r.EnsureCharger(serial).Name = name
}

// RemoveCharger deletes a charger. Returns false if it wasn't registered.
func (r *Registry) RemoveCharger(serial string) bool {
	if _, ok := r.Chargers[serial]; !ok {
		return false
	}
	delete(r.Chargers, serial)
	if r.Preferences != nil && r.Preferences.DefaultCharger == serial {
		r.Preferences.DefaultCharger = ""
	}
	return true
}

// Serials returns the registered serial numbers in order.
func (r *Registry) Serials() []string {
	serials := make([]string, 0, len(r.Chargers))
	for s := range r.Chargers {
		serials = append(serials, s)
	}
	sort.Strings(serials)
	return serials
}

// FindCharger resolves ref as a serial number, a name (case-insensitive) or
// an IP address. An empty ref selects the default charger, or the only one.
func (r *Registry) FindCharger(ref string) (string, *Charger, error) {
	if ref == "" {
		if r.Preferences != nil && r.Preferences.DefaultCharger != "" {
			ref = r.Preferences.DefaultCharger
		} else if len(r.Chargers) == 1 {
			for serial, c := range r.Chargers {
				return serial, c, nil
			}
		} else if len(r.Chargers) == 0 {
			return "", nil, fmt.Errorf("no chargers registered (run 'benyctl add')")
		} else {
			return "", nil, fmt.Errorf("%d chargers registered, select one with --charger", len(r.Chargers))
		}
	}

	if c, ok := r.Chargers[ref]; ok {
		return ref, c, nil
	}
	for _, serial := range r.Serials() {
		c := r.Chargers[serial]
		if strings.EqualFold(c.Name, ref) || c.IP == ref {
			return serial, c, nil
		}
	}
	return "", nil, fmt.Errorf("charger %q not found in config", ref)
}

// Validate checks a charger entry.
func (c *Charger) Validate() error {
	if net.ParseIP(c.IP).To4() == nil {
		return fmt.Errorf("invalid IPv4 address %q", c.IP)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Phases != 0 && c.Phases != 1 && c.Phases != 3 {
		return fmt.Errorf("phases must be 1 or 3, got %d", c.Phases)
	}
	if c.PIN != "" {
		if _, err := strconv.ParseUint(c.PIN, 10, 32); err != nil {
			return fmt.Errorf("PIN must be numeric")
		}
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	return nil
}

// UDPPort returns the charger's port, applying the default.
func (c *Charger) UDPPort() int {
	if c.Port == 0 {
		return DefaultPort
	}
	return c.Port
}

// Interval returns the charger's poll interval, falling back to prefs.
func (c *Charger) Interval(prefs *Preferences) time.Duration {
	if c.PollInterval > 0 {
		return time.Duration(c.PollInterval) * time.Second
	}
	if prefs != nil && prefs.PollInterval > 0 {
		return time.Duration(prefs.PollInterval) * time.Second
	}
	return DefaultPollInterval * time.Second
}

// DisplayName returns the name, or the serial when no name is set.
func (c *Charger) DisplayName(serial string) string {
	if c.Name != "" {
		return c.Name
	}
	return serial
}
