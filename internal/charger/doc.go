// Package charger provides a UDP client for a single Beny charger.
//
// Every operation is one exchange: build a frame, open a socket, send one
// datagram, wait up to five seconds for one reply, close the socket. There
// is no retry and no request correlation, so callers must not run two
// exchanges against the same charger at once (the poller serializes them).
//
// # Usage Example
//
//	client := charger.NewClient("192.168.1.100", charger.DefaultPort,
//	    charger.WithPIN("123456"),
//	    charger.WithLogger(log),
//	)
//
//	reading, err := client.FetchReading(ctx)
//	if err != nil {
//	    fmt.Println(charger.GetShortErrorMessage(err))
//	    return
//	}
//	fmt.Println(reading.Summary())
//
//	// Guarded: refused while no vehicle is plugged in
//	err = client.ToggleCharging(ctx, protocol.CommandStart)
//	if errors.Is(err, charger.ErrChargerUnplugged) { ... }
//
// # Errors
//
// Socket failures, timeouts, undecodable replies and PIN rejections are all
// returned as *DeviceError with an ErrorType; see GetTroubleshootingHint for
// user-facing advice. Commands refused by the unplugged guard return
// ErrChargerUnplugged or ErrStateUnknown without touching the network.
package charger
