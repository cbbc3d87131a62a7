package stream

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
)

// maxLineSize bounds a single event line. Status payloads are small; this
// only protects against a misbehaving server.
const maxLineSize = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	ID    string
	Name  string
	Data  []byte
	Retry time.Duration // zero when the event carried no retry field
}

// Decoder reads server-sent events from a stream as they arrive.
type Decoder struct {
	scanner *bufio.Scanner
	lastID  string
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxLineSize)
	s.Split(scanLines)
	return &Decoder{scanner: s}
}

// LastID returns the most recent event id seen, which persists across
// events that do not set one.
func (d *Decoder) LastID() string {
	return d.lastID
}

// Next blocks until a complete event has been read. Comment lines and
// events without data are skipped, except that a bare retry field is
// still reported. It returns io.EOF when the stream ends cleanly.
func (d *Decoder) Next() (Event, error) {
	var (
		ev      Event
		data    bytes.Buffer
		hasData bool
	)

	for d.scanner.Scan() {
		line := d.scanner.Text()

		if line == "" {
			if hasData {
				ev.ID = d.lastID
				ev.Data = bytes.TrimSuffix(data.Bytes(), []byte{'\n'})
				if ev.Name == "" {
					ev.Name = "message"
				}
				return ev, nil
			}
			if ev.Retry > 0 {
				return Event{Retry: ev.Retry, ID: d.lastID}, nil
			}
			ev = Event{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			ev.Name = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.lastID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	// An event not terminated by a blank line is discarded.
	return Event{}, io.EOF
}

// scanLines splits on LF, CRLF or a lone CR.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if !atEOF {
				// Need one more byte to tell CR from CRLF.
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
