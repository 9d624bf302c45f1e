// Package server exposes a charger's polled readings over HTTP.
//
// The server never talks to the charger itself. It reads from a Source
// (normally a *poller.Poller) so any number of HTTP clients share one UDP
// poll.
//
// # Endpoints
//
//	GET /api/reading   latest reading as JSON, 503 before the first poll succeeds
//	GET /api/status    last error, last attempt/success times, poll interval
//	GET /ws            WebSocket; pushes the current reading, then each new one
//	GET /metrics       Prometheus exposition (when metrics are enabled)
//
// Readings use the same JSON shape everywhere: lowercase charger_state,
// power in kW, total_kwh in kWh and "not_set" for unset timer times.
//
// # Usage Example
//
//	p := poller.New(client)
//	go p.Run(ctx)
//
//	srv := server.New(&server.Config{Port: 8080}, p, metrics.New())
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Shutdown
//
// Start returns after ctx is done and the server has shut down. Open
// WebSocket connections receive a going-away close frame.
package server
