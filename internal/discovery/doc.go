// Package discovery finds Beny chargers on the local network.
//
// Chargers do not advertise themselves. Instead the scanner broadcasts a
// single POLL_DEVICES datagram to 255.255.255.255 on UDP port 3333 and every
// charger on the segment answers with a HANDSHAKE carrying its serial
// number, IP address and control port.
//
// # Discovery Process
//
//  1. Open an ephemeral UDP socket
//  2. Send POLL_DEVICES to the broadcast address
//  3. Collect HANDSHAKE replies until the timeout, ignoring anything else
//  4. Deduplicate by serial number and return the devices ordered by serial
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	devices, err := scanner.ScanForDevices()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, device := range devices {
//	    fmt.Printf("Found: %s\n", device)
//	}
//
// # Network Requirements
//
// - The host must be on the same broadcast domain as the chargers
// - Firewalls must allow inbound UDP replies to the ephemeral port
package discovery
