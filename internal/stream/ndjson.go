// Package stream frames run events as newline-delimited JSON.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/epeers/nexus/internal/models"
	log "github.com/sirupsen/logrus"
)

// ContentType is the media type of an NDJSON stream
const ContentType = "application/x-ndjson"

// ErrMalformedLine is returned for a complete line that is not valid JSON
var ErrMalformedLine = errors.New("malformed stream line")

// Writer writes one JSON document per line, flushing after each so the
// consumer sees events as they happen
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. If w is an http.Flusher every line is flushed.
func NewWriter(w io.Writer) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: f}
}

// Write encodes v and terminates it with a newline
func (sw *Writer) Write(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode stream line: %w", err)
	}
	raw = append(raw, '\n')
	if _, err := sw.w.Write(raw); err != nil {
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// Reader parses an NDJSON stream arriving in arbitrary chunks. Partial lines are
// buffered until their newline arrives; a final line without a newline is
// logged and discarded.
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a new Reader
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Decode reads the next complete line into v. Blank lines are skipped.
// It returns io.EOF when the stream ends.
func (sr *Reader) Decode(v any) error {
	for {
		line, err := sr.r.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(bytes.TrimSpace(line)) > 0 {
					log.Warnf("discarding %d bytes of unterminated stream data", len(line))
				}
				return io.EOF
			}
			return err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if err := json.Unmarshal(line, v); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedLine, err)
		}
		return nil
	}
}

// Next reads the next run event
func (sr *Reader) Next() (models.RunEvent, error) {
	var ev models.RunEvent
	err := sr.Decode(&ev)
	return ev, err
}

// ReadAll reads run events until the stream ends
func ReadAll(r io.Reader) ([]models.RunEvent, error) {
	sr := NewReader(r)
	var events []models.RunEvent
	for {
		ev, err := sr.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
