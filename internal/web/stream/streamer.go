package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
)

// NDJSONType is the content type of newline-delimited JSON
const NDJSONType = "application/x-ndjson"

// ErrNotSupported is returned when the response writer cannot flush
var ErrNotSupported = errors.New("streaming not supported")

// Streamer writes one JSON document per line, flushing every flushEvery
// records so long exports reach the client while the query is still running
type Streamer struct {
	w          http.ResponseWriter
	flusher    http.Flusher
	encoder    *json.Encoder
	flushEvery int
	pending    int
	count      int
}

// Option configures a Streamer
type Option func(*Streamer)

// WithFlushEvery flushes after every n records. Values below 1 mean 1.
func WithFlushEvery(n int) Option {
	return func(s *Streamer) {
		if n < 1 {
			n = 1
		}
		s.flushEvery = n
	}
}

// WithAttachment marks the response as a download named filename
func WithAttachment(filename string) Option {
	return func(s *Streamer) {
		s.w.Header().Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
}

// NewNDJSON prepares w for a newline-delimited JSON stream. Headers are set
// but nothing is written until the first record.
func NewNDJSON(w http.ResponseWriter, opts ...Option) (*Streamer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrNotSupported
	}
	s := &Streamer{
		w:          w,
		flusher:    flusher,
		encoder:    json.NewEncoder(w),
		flushEvery: 1,
	}
	w.Header().Set("Content-Type", NDJSONType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// WriteJSON encodes v as one line
func (s *Streamer) WriteJSON(v any) error {
	if err := s.encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	s.count++
	s.pending++
	if s.pending >= s.flushEvery {
		s.Flush()
	}
	return nil
}

// Flush pushes buffered records to the client
func (s *Streamer) Flush() {
	s.pending = 0
	s.flusher.Flush()
}

// Count returns the number of records written
func (s *Streamer) Count() int {
	return s.count
}
