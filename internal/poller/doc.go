// Package poller keeps a charger's latest reading fresh.
//
// A Poller fetches on a fixed interval (30 seconds by default), remembers
// the last successful reading and the last error, and fans new readings out
// to subscribers such as the WebSocket server and the dashboard. A failed
// poll never clears the previous reading.
//
// Commands run through Do so they never overlap a poll. LastState makes the
// poller a charger.StateProvider for clients that do not fetch readings
// themselves.
//
//	client := charger.NewClient(ip, port)
//	p := poller.New(client, poller.WithInterval(10*time.Second))
//	go p.Run(ctx)
//
//	err := p.Do(ctx, func(ctx context.Context) error {
//	    return client.ToggleCharging(ctx, protocol.CommandStart)
//	})
package poller
