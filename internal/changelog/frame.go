package changelog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedFrame reports a byte where '[' was required. Parsing of that
// file stops; previously parsed entries remain valid.
var ErrMalformedFrame = errors.New("malformed change-log frame")

// EncodeFrame frames a payload as "[" length "]" payload. The decimal byte
// length is the sole delimiter, so payload bytes may contain anything,
// including '[' and ']'.
func EncodeFrame(payload []byte) []byte {
	header := "[" + strconv.Itoa(len(payload)) + "]"
	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	return append(out, payload...)
}

// MarshalEntry renders one framed change-log entry.
func MarshalEntry(e Entry) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change entry: %w", err)
	}
	return EncodeFrame(payload), nil
}

// ParseFrames splits a concatenated frame stream into payloads.
func ParseFrames(data []byte) ([][]byte, error) {
	var out [][]byte
	i := 0
	for i < len(data) {
		if data[i] != '[' {
			return out, fmt.Errorf("%w: expected '[' at offset %d", ErrMalformedFrame, i)
		}
		i++

		start := i
		for i < len(data) && data[i] != ']' {
			i++
		}
		if i == len(data) {
			return out, fmt.Errorf("%w: unterminated length header at offset %d", ErrMalformedFrame, start)
		}

		length, err := strconv.Atoi(string(data[start:i]))
		if err != nil || length < 0 {
			return out, fmt.Errorf("%w: bad length header at offset %d", ErrMalformedFrame, start)
		}
		i++

		if i+length > len(data) {
			return out, fmt.Errorf("%w: truncated payload at offset %d", ErrMalformedFrame, i)
		}
		out = append(out, data[i:i+length])
		i += length
	}
	return out, nil
}

// DecodeEntries parses a full change-log file into entries, in order. On a
// framing or decode error it returns the entries parsed up to that point
// alongside the error, so callers can still apply the valid prefix.
func DecodeEntries(data []byte) ([]Entry, error) {
	payloads, frameErr := ParseFrames(data)
	entries := make([]Entry, 0, len(payloads))
	for _, p := range payloads {
		var e Entry
		if err := json.Unmarshal(p, &e); err != nil {
			return entries, fmt.Errorf("failed to decode change entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, frameErr
}
