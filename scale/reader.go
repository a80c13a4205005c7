package scale

import (
	"bufio"
	"io"
	"strings"
)

// Reader reads server-sent-event frames from the live-weight stream. The
// stream carries bare data frames ("data: 12.345 kg"); event and id fields
// are tolerated but not needed.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a stream reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the payload of the next frame, or io.EOF at end of stream.
// Multi-line data fields are joined with newlines per the SSE wire format.
func (r *Reader) Next() (string, error) {
	var parts []string

	for r.scanner.Scan() {
		line := r.scanner.Text()

		// Blank line dispatches the frame
		if line == "" {
			if len(parts) > 0 {
				return strings.Join(parts, "\n"), nil
			}
			continue
		}

		// Comment lines are keep-alives
		if strings.HasPrefix(line, ":") {
			continue
		}

		field := line
		value := ""
		if idx := strings.Index(line, ":"); idx >= 0 {
			field = line[:idx]
			value = line[idx+1:]
			// Strip single leading space per SSE spec
			if strings.HasPrefix(value, " ") {
				value = value[1:]
			}
		}
		if field == "data" {
			parts = append(parts, value)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return "", err
	}

	// EOF with a pending frame: dispatch it
	if len(parts) > 0 {
		return strings.Join(parts, "\n"), nil
	}
	return "", io.EOF
}
