package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/benywifi/beny/internal/logging"
	"github.com/benywifi/beny/internal/poller"
)

// statusResponse is the body of GET /api/status
type statusResponse struct {
	poller.Status
	PollInterval     string `json:"poll_interval"`
	WebSocketClients int    `json:"websocket_clients"`
}

func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	reading := s.source.Last()
	if reading == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no reading yet"})
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.source.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		Status:           status,
		PollInterval:     status.Interval.String(),
		WebSocketClients: s.GetActiveConnections(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response", zap.Error(err))
	}
}

// statusRecorder captures the response code for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
		logging.Debug("Request handled",
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(started)),
		)
	})
}
