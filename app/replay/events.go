// Package replay feeds recorded node events back through the pipeline.
package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Formats of a recording.
const (
	FormatAuto  = "auto"
	FormatTSV   = "tsv"
	FormatJSONL = "jsonl"
)

// maxLine bounds one recorded event. Blocks with large contract deployments
// run to tens of megabytes.
const maxLine = 256 << 20

// Event is one recorded node post.
type Event struct {
	Line      int
	ID        string
	Timestamp string
	Path      string
	Payload   []byte
}

// Reader reads events from a TSV export (id, timestamp, path, payload) or
// from JSON lines of {"path": ..., "payload": ...}.
type Reader struct {
	scanner *bufio.Scanner
	format  string
	line    int
}

// FormatFor picks the format of name when format is auto.
func FormatFor(name, format string) string {
	if format != "" && format != FormatAuto {
		return format
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL
	}
	return FormatTSV
}

func NewReader(r io.Reader, format string) (*Reader, error) {
	switch format {
	case FormatTSV, FormatJSONL:
	default:
		return nil, fmt.Errorf("unknown replay format %q", format)
	}
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 1<<20), maxLine)
	return &Reader{scanner: s, format: format}, nil
}

// Next returns the next event, or io.EOF after the last one. Blank lines are
// skipped.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		r.line++
		raw := bytes.TrimSpace(r.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var (
			ev  Event
			err error
		)
		if r.format == FormatJSONL {
			ev, err = parseJSONL(raw)
		} else {
			ev, err = parseTSV(raw)
		}
		if err != nil {
			return Event{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		ev.Line = r.line
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("line %d: %w", r.line+1, err)
	}
	return Event{}, io.EOF
}

func parseTSV(raw []byte) (Event, error) {
	cols := strings.SplitN(string(raw), "\t", 4)
	if len(cols) != 4 {
		return Event{}, fmt.Errorf("want 4 tab separated columns, got %d", len(cols))
	}
	return Event{ID: cols[0], Timestamp: cols[1], Path: cols[2], Payload: []byte(cols[3])}, nil
}

type jsonEvent struct {
	ID        json.RawMessage `json:"id"`
	Timestamp string          `json:"timestamp"`
	Path      string          `json:"path"`
	Payload   json.RawMessage `json:"payload"`
}

func parseJSONL(raw []byte) (Event, error) {
	var je jsonEvent
	if err := json.Unmarshal(raw, &je); err != nil {
		return Event{}, err
	}
	if je.Path == "" {
		return Event{}, errors.New("event has no path")
	}
	payload := []byte(je.Payload)
	// A payload recorded as a JSON string holds the raw body.
	var body string
	if err := json.Unmarshal(je.Payload, &body); err == nil {
		payload = []byte(body)
	}
	return Event{ID: strings.Trim(string(je.ID), `"`), Timestamp: je.Timestamp, Path: je.Path, Payload: payload}, nil
}
