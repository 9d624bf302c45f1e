package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ChecksumPlaceholder marks where the checksum goes in a template.
const ChecksumPlaceholder = "[checksum]"

var (
	// ErrOddLength is returned for frames that are not whole byte pairs.
	ErrOddLength = errors.New("frame has odd number of hex digits")
	// ErrShortFrame is returned for frames below MinFrameLength.
	ErrShortFrame = errors.New("frame too short")
)

// CalculateChecksum sums the byte pairs of frame modulo 256. If frame still
// contains the [checksum] placeholder, only the text before it is summed;
// otherwise the final byte pair is taken to be the checksum and skipped.
func CalculateChecksum(frame string) (uint8, error) {
	data := frame
	if i := strings.Index(frame, ChecksumPlaceholder); i >= 0 {
		data = frame[:i]
	} else {
		if len(frame) < 2 {
			return 0, ErrShortFrame
		}
		data = frame[:len(frame)-2]
	}
	if len(data)%2 != 0 {
		return 0, ErrOddLength
	}

	var sum uint
	for i := 0; i < len(data); i += 2 {
		b, err := parseByte(data[i : i+2])
		if err != nil {
			return 0, fmt.Errorf("byte %d: %w", i/2, err)
		}
		sum += uint(b)
	}
	return uint8(sum % 256), nil
}

// CompareChecksum returns the checksum carried by frame and the one
// calculated over its contents.
func CompareChecksum(frame string) (claimed, calculated uint8, err error) {
	if len(frame) < MinFrameLength {
		return 0, 0, ErrShortFrame
	}
	if len(frame)%2 != 0 {
		return 0, 0, ErrOddLength
	}
	claimed, err = parseByte(frame[len(frame)-2:])
	if err != nil {
		return 0, 0, fmt.Errorf("checksum: %w", err)
	}
	calculated, err = CalculateChecksum(frame)
	if err != nil {
		return 0, 0, err
	}
	return claimed, calculated, nil
}

// ValidateChecksum reports whether frame is well formed and its trailing
// byte pair matches the calculated checksum.
func ValidateChecksum(frame string) bool {
	claimed, calculated, err := CompareChecksum(frame)
	return err == nil && claimed == calculated
}

// AppendChecksum appends the checksum of a frame body.
func AppendChecksum(body string) (string, error) {
	sum, err := CalculateChecksum(body + ChecksumPlaceholder)
	if err != nil {
		return "", err
	}
	return body + fmt.Sprintf("%02x", sum), nil
}

func parseByte(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid hex byte %q", s)
	}
	return uint8(v), nil
}
