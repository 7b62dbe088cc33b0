package importer

import (
	"bufio"
	"io"
	"strings"
)

// ScanImagePairs walks raw JSON text byte-by-byte and emits every
// top-level {"key": "value"} string pair to apply, without ever holding
// the whole document in memory. The scanner only tracks four states
// (outside, inside-key, inside-value, escaped), which is all the image
// dump format needs.
func ScanImagePairs(r io.Reader, apply func(key, value string) error) error {
	br := bufio.NewReaderSize(r, 64*1024)

	var key, value strings.Builder
	insideKey := false
	insideValue := false
	haveKey := false
	escaped := false

	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case insideKey:
			switch {
			case escaped:
				key.WriteByte(c)
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				insideKey = false
				haveKey = true
			default:
				key.WriteByte(c)
			}

		case insideValue:
			switch {
			case escaped:
				value.WriteByte(c)
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				insideValue = false
				if err := apply(key.String(), value.String()); err != nil {
					return err
				}
				key.Reset()
				value.Reset()
				haveKey = false
			default:
				value.WriteByte(c)
			}

		default:
			if c == '"' {
				if !haveKey {
					insideKey = true
				} else {
					insideValue = true
				}
			}
		}
	}
}
