// Package sse reads and writes server-sent event streams.
package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

// Reader yields the data of each event in a stream.
type Reader struct {
	// source buffers the underlying stream.
	source *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{source: bufio.NewReader(r)}
}

// Next returns the data of the next event, its data lines joined by "\n".
// Comments, other fields and events without data are skipped. A final event
// cut off by the end of the stream is still returned; io.EOF follows it.
func (r *Reader) Next() (string, error) {
	var data []string
	for {
		line, err := r.source.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(value, " "))
		}
		if line != "" && err == nil {
			continue
		}
		if len(data) > 0 {
			return strings.Join(data, "\n"), nil
		}
		if err != nil {
			return "", io.EOF
		}
	}
}

// WriteEvent writes one event; each line of data becomes a data field.
func WriteEvent(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	for _, line := range bytes.Split(data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// WriteComment writes a comment, which readers ignore. Servers send one to
// keep idle connections open.
func WriteComment(w io.Writer, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("write comment: %w", err)
	}
	return nil
}
