// ABOUTME: Re-segments text fragments into complete NDJSON records
// ABOUTME: Buffers partial objects across fragment boundaries and drops truncated trailing data

package stream

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// FragmentSource yields text fragments until io.EOF. *Body satisfies it.
type FragmentSource interface {
	Next() (string, error)
}

// Splitter turns a fragment sequence into complete records. A record ends at
// the brace closing a top-level JSON object, or at a newline outside any object.
// Only a brace that opens a line starts an object; braces inside plain-text
// lines are not tracked.
type Splitter struct {
	src    FragmentSource
	logger *slog.Logger

	buf      strings.Builder
	depth    int
	inString bool
	escaped  bool
	// text is set once the current record has a non-space byte outside an object.
	text bool

	queue []string
	err   error
}

// NewSplitter creates a Splitter reading from src.
func NewSplitter(src FragmentSource, logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{
		src:    src,
		logger: logger.With("component", "splitter"),
	}
}

// Next returns the next complete record. It returns io.EOF after the source
// ends and any complete trailing record has been returned. Source errors other
// than io.EOF are returned once all records that precede them are consumed.
func (s *Splitter) Next() (string, error) {
	for len(s.queue) == 0 {
		if s.err != nil {
			return "", s.err
		}

		frag, err := s.src.Next()
		if frag != "" {
			s.feed(frag)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.flush()
			}
			s.err = err
		}
	}

	rec := s.queue[0]
	s.queue = s.queue[1:]
	return rec, nil
}

func (s *Splitter) feed(frag string) {
	for i := 0; i < len(frag); i++ {
		c := frag[i]
		s.buf.WriteByte(c)

		if s.inString {
			switch {
			case s.escaped:
				s.escaped = false
			case c == '\\':
				s.escaped = true
			case c == '"':
				s.inString = false
			}
			continue
		}

		switch c {
		case '"':
			// Quotes only open strings inside an object; plain-text lines may contain stray quotes.
			if s.depth > 0 {
				s.inString = true
			} else {
				s.text = true
			}
		case '{':
			if s.depth > 0 || !s.text {
				s.depth++
			}
		case '}':
			if s.depth > 0 {
				s.depth--
				if s.depth == 0 {
					s.emit()
				}
			}
		case '\n':
			if s.depth == 0 {
				s.emit()
			}
		case ' ', '\t', '\r':
		default:
			if s.depth == 0 {
				s.text = true
			}
		}
	}
}

func (s *Splitter) emit() {
	rec := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	s.text = false
	if rec != "" {
		s.queue = append(s.queue, rec)
	}
}

// flush emits the remainder only when it is a complete JSON value.
func (s *Splitter) flush() {
	rest := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	s.text = false
	if rest == "" {
		return
	}
	if s.depth == 0 && !s.inString && json.Valid([]byte(rest)) {
		s.queue = append(s.queue, rest)
		return
	}
	s.logger.Debug("discarding truncated trailing record", "bytes", len(rest))
}
