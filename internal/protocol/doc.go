// Package protocol implements the Beny charger UDP control protocol.
//
// The charger exchanges ASCII hex strings over UDP (default port 3333). Every
// datagram is a sequence of hex digit pairs; each pair is one byte. Fields sit
// at fixed positions counted in hex characters, not bytes, and a few of them
// are a single nibble wide.
//
// # Frame Layout
//
// All frames share a common header:
//   - [0:4]  header tag, always 55aa
//   - [4:6]  protocol version, 10 on known firmware
//   - [6:10] message ID, used to dispatch server responses
//
// The last byte pair is the checksum: the sum of every preceding byte modulo
// 256, written as two lowercase hex digits.
//
// # Message Types
//
// Client messages (sent to the charger) carry a template with bracketed
// placeholders such as [request_type] and [checksum]:
//
//	55aa10000b0000cb34[request_type][checksum]
//
// Server messages (sent by the charger) carry only a field layout. The full
// table lives in layout.go and is reproduced bit-exact from captured traffic.
//
// # Usage Example - Decoding
//
//	msg := protocol.Decode(frame, protocol.MessageUnknown)
//	if msg == nil {
//	    // bad checksum or unknown message ID, drop it
//	    return
//	}
//	state, _ := protocol.Value[protocol.ChargerState](msg, "state")
//
// Decode never returns an error. A nil message means the frame should be
// dropped: UDP is lossy and a corrupt datagram is an expected event, not a
// failure. Use NewDecoder with a logger to see why a frame was dropped.
//
// # Usage Example - Encoding
//
//	frame, err := protocol.Build(protocol.MessageRequestData,
//	    protocol.RequestDataParams(protocol.RequestValues))
//	// frame == "55aa10000b0000cb347089"
//
// Build rejects frames with unfilled placeholders, and parameter values that
// are not hex of the placeholder's width, so a malformed command is never
// put on the wire.
//
// # Thread Safety
//
// The layout tables are immutable and all functions are safe for concurrent
// use. A Decoder only holds a logger.
package protocol
