package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device represents a charger that answered a discovery broadcast
type Device struct {
	// Serial is the charger serial number (e.g., "1234567890")
	Serial string `json:"serial"`

	// IP is the IPv4 address the charger reports for itself
	IP string `json:"ip"`

	// Port is the UDP control port the charger reports (typically 3333)
	Port int `json:"port"`

	// Model is the model string (e.g., "BCP-AT1N-L"). The handshake does
	// not carry it; callers fill it in with a MODEL request.
	Model string `json:"model,omitempty"`

	// RemoteAddr is where the handshake datagram actually came from
	RemoteAddr string `json:"remote_addr"`

	// DiscoveredAt is when the handshake was received
	DiscoveredAt time.Time `json:"discovered_at"`
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	if d.Model != "" {
		return fmt.Sprintf("Beny Charger %s (%s) at %s", d.Serial, d.Model, d.Addr())
	}
	return fmt.Sprintf("Beny Charger %s at %s", d.Serial, d.Addr())
}

// Addr returns the charger's host:port
func (d *Device) Addr() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}
