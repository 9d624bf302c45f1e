package charger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/benywifi/beny/internal/protocol"
)

// request sends t and decodes the reply as expect. A reply with a
// dispatchable message ID is decoded by ID first, so an access denied reply
// is recognised whatever was expected.
func (c *Client) request(ctx context.Context, op string, t protocol.MessageType, params protocol.Params, expect protocol.MessageType) (*protocol.Message, error) {
	resp, err := c.exchange(ctx, op, t, params)
	if err != nil {
		return nil, err
	}

	msg := c.decoder.Decode(resp, protocol.MessageUnknown)
	if msg != nil && msg.Type == protocol.MessageAccessDenied {
		return nil, NewAccessDeniedError(c.IP)
	}
	if expect.MessageID() == 0 {
		msg = c.decoder.Decode(resp, expect)
	}
	if msg == nil {
		return nil, NewDecodeError(fmt.Sprintf("invalid %s response", expect), resp)
	}
	if msg.Type != expect {
		return nil, NewDecodeError(fmt.Sprintf("unexpected %s response, want %s", msg.Type, expect), resp)
	}
	return msg, nil
}

// command sends t and waits for one reply. The reply is not interpreted
// beyond an access denied check.
func (c *Client) command(ctx context.Context, op string, t protocol.MessageType, params protocol.Params) error {
	resp, err := c.exchange(ctx, op, t, params)
	if err != nil {
		return err
	}
	if msg := c.decoder.Decode(resp, protocol.MessageUnknown); msg != nil {
		if msg.Type == protocol.MessageAccessDenied {
			return NewAccessDeniedError(c.IP)
		}
		c.log.Debug("Command acknowledged", zap.String("operation", op), zap.Stringer("reply", msg.Type))
	}
	return nil
}

// exchange encodes t, performs one round trip and reports it to the observer.
func (c *Client) exchange(ctx context.Context, op string, t protocol.MessageType, params protocol.Params) (string, error) {
	p := make(protocol.Params, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	if c.pin != "" {
		p["pin"] = c.pin
	}

	frame, err := protocol.Build(t, p)
	if err != nil {
		return "", NewValidationError(fmt.Sprintf("cannot build %s", t), err)
	}

	started := time.Now()
	resp, err := c.roundTrip(ctx, frame)
	if c.observer != nil {
		c.observer.ObserveExchange(op, time.Since(started), err)
	}
	return resp, err
}

// roundTrip owns one UDP socket for the duration of the exchange and closes
// it on every path. The deadline is the earlier of the client timeout and
// the context deadline; cancelling ctx unblocks the read.
func (c *Client) roundTrip(ctx context.Context, frame string) (string, error) {
	raddr, err := net.ResolveUDPAddr("udp4", c.Addr())
	if err != nil {
		return "", NewNetworkError("invalid charger address", err)
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return "", NewNetworkError("failed to open socket", err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", NewNetworkError("failed to set deadline", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	c.log.Debug("Sending frame", zap.String("frame", frame))
	if _, err := conn.WriteTo([]byte(frame), raddr); err != nil {
		return "", c.classify(ctx, "UDP request failed", err)
	}

	buf := make([]byte, protocol.MaxDatagramSize)
	n, from, err := conn.ReadFrom(buf)
	if err != nil {
		return "", c.classify(ctx, "UDP request failed", err)
	}
	resp := strings.TrimSpace(string(buf[:n]))

	c.log.Debug("Received frame",
		zap.String("frame", resp),
		zap.Stringer("from", from),
		zap.Int("bytes", n),
	)
	return resp, nil
}

// classify prefers the context's error when the deadline was forced by
// cancellation.
func (c *Client) classify(ctx context.Context, message string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	devErr := ClassifyNetworkError(err, c.IP)
	if devErr.Type != ErrTypeCanceled && devErr.Type != ErrTypeTimeout {
		devErr.Message = message
	}
	return devErr
}
