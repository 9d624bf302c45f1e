package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/benywifi/beny/internal/logging"
	"github.com/benywifi/beny/internal/protocol"
)

const (
	// BroadcastAddr is the limited broadcast address chargers listen on
	BroadcastAddr = "255.255.255.255"

	// DefaultScanTimeout is how long to collect handshake replies
	DefaultScanTimeout = 3 * time.Second
)

// Scanner broadcasts POLL_DEVICES and collects HANDSHAKE replies
type Scanner struct {
	// Timeout is the maximum time to wait for replies
	Timeout time.Duration

	// Target is the address the poll is sent to (default 255.255.255.255)
	Target string

	// Port is the chargers' UDP port (default 3333)
	Port int

	decoder *protocol.Decoder
}

// NewScanner creates a new scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Target:  BroadcastAddr,
		Port:    protocol.DefaultPort,
		decoder: protocol.NewDecoder(logging.Named("discovery")),
	}
}

// ScanForDevices discovers all chargers on the local network
// Returns the devices that answered before the timeout, ordered by serial
func (s *Scanner) ScanForDevices() ([]*Device, error) {
	return s.ScanForDevicesWithContext(context.Background())
}

// ScanForDevicesWithContext discovers devices with a custom context
func (s *Scanner) ScanForDevicesWithContext(ctx context.Context) ([]*Device, error) {
	return s.scan(ctx, nil)
}

// WaitForDevice waits for a specific charger by serial number
func (s *Scanner) WaitForDevice(serial string) (*Device, error) {
	return s.WaitForDeviceWithContext(context.Background(), serial)
}

// WaitForDeviceWithContext waits for a specific charger with a custom context
func (s *Scanner) WaitForDeviceWithContext(ctx context.Context, serial string) (*Device, error) {
	devices, err := s.scan(ctx, func(d *Device) bool { return d.Serial == serial })
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Serial == serial {
			return d, nil
		}
	}
	return nil, fmt.Errorf("charger with serial %s not found within timeout", serial)
}

// scan sends one poll and reads replies until the timeout, or until done
// reports true for a device.
func (s *Scanner) scan(ctx context.Context, done func(*Device) bool) ([]*Device, error) {
	frame, err := protocol.Build(protocol.MessagePollDevices, nil)
	if err != nil {
		return nil, err
	}

	target := &net.UDPAddr{IP: net.ParseIP(s.Target), Port: s.Port}
	if target.IP == nil {
		return nil, fmt.Errorf("invalid broadcast address %q", s.Target)
	}

	// Go enables SO_BROADCAST on datagram sockets, so the limited
	// broadcast address works without extra socket options.
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("failed to open discovery socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(s.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	logging.Debug("Sending discovery poll", zap.Stringer("target", target), zap.String("frame", frame))
	if _, err := conn.WriteTo([]byte(frame), target); err != nil {
		return nil, fmt.Errorf("failed to send discovery poll: %w", err)
	}

	seen := make(map[string]*Device)
	buf := make([]byte, protocol.MaxDatagramSize)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			return nil, fmt.Errorf("failed to read discovery replies: %w", err)
		}

		device := s.parseHandshake(buf[:n], from)
		if device == nil {
			continue
		}
		if _, dup := seen[device.Serial]; dup {
			continue
		}
		seen[device.Serial] = device
		logging.Info("Charger discovered",
			zap.String("serial", device.Serial),
			zap.String("addr", device.Addr()),
		)
		if done != nil && done(device) {
			break
		}
	}

	devices := make([]*Device, 0, len(seen))
	for _, d := range seen {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Serial < devices[j].Serial })
	return devices, nil
}

// parseHandshake converts a HANDSHAKE datagram to a Device
// Returns nil for anything else
func (s *Scanner) parseHandshake(data []byte, from net.Addr) *Device {
	msg := s.decoder.Decode(string(data), protocol.MessageUnknown)
	if msg == nil || msg.Type != protocol.MessageHandshake {
		logging.LogRawBytes("Ignoring discovery reply", data)
		return nil
	}

	port := msg.Int("port")
	if port == 0 {
		port = protocol.DefaultPort
	}
	return &Device{
		Serial:       strconv.Itoa(msg.Int("serial")),
		IP:           msg.Str("ip"),
		Port:         port,
		RemoteAddr:   from.String(),
		DiscoveredAt: time.Now(),
	}
}
