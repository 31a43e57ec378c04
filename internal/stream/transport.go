// ABOUTME: Opens a streaming run request and reads the response body as UTF-8 text fragments
// ABOUTME: Non-2xx responses become TransportError with a best-effort parsed error body

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"unicode/utf8"
)

// maxErrorBody caps how much of a failed response is read for the error message.
const maxErrorBody = 64 << 10

// readBufferSize is the size of each read from the response body.
const readBufferSize = 4096

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FormField is one multipart form field. Fields are written in order.
type FormField struct {
	Name  string
	Value string
}

// Request describes one streaming run request. Exactly one of Form or JSON is used;
// JSON wins when both are set.
type Request struct {
	URL    string
	Form   []FormField
	JSON   any
	Header map[string]string
}

// TransportError reports a failed request: either a non-2xx initial response
// (StatusCode set) or a network failure before or during streaming (Err set).
type TransportError struct {
	StatusCode int
	Status     string
	Body       any
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("server returned status %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Message extracts a human-readable message from the parsed error body.
func (e *TransportError) Message() string {
	switch body := e.Body.(type) {
	case string:
		return strings.TrimSpace(body)
	case map[string]any:
		for _, key := range []string{"detail", "error", "message"} {
			if v, ok := body[key]; ok {
				if s, ok := v.(string); ok {
					return s
				}
				data, _ := json.Marshal(v)
				return string(data)
			}
		}
		data, _ := json.Marshal(body)
		return string(data)
	case nil:
		return ""
	default:
		data, _ := json.Marshal(body)
		return string(data)
	}
}

// Open sends req as a POST and returns the response body as a fragment reader.
// The caller must Close the returned Body.
func Open(ctx context.Context, doer Doer, req *Request) (*Body, error) {
	if doer == nil {
		doer = http.DefaultClient
	}

	payload, contentType, err := req.encode()
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, payload)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	resp, err := doer.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       parseErrorBody(data),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	return &Body{
		rc:  resp.Body,
		buf: make([]byte, readBufferSize),
	}, nil
}

func (r *Request) encode() (io.Reader, string, error) {
	if r.JSON != nil {
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range r.Form {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func parseErrorBody(data []byte) any {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(data, &parsed); err == nil {
		return parsed
	}
	return string(data)
}

// Body yields the response body as text fragments in arrival order.
// It is not restartable; a new run needs a new Open.
type Body struct {
	rc      io.ReadCloser
	buf     []byte
	pending []byte
	err     error
}

// Next returns the next text fragment. It returns io.EOF once the connection
// has closed cleanly, or a *TransportError if reading failed.
func (b *Body) Next() (string, error) {
	if b.err != nil {
		return "", b.err
	}

	for {
		n, err := b.rc.Read(b.buf)
		var frag string
		if n > 0 {
			frag = b.decode(b.buf[:n])
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(b.pending) > 0 {
					frag += strings.ToValidUTF8(string(b.pending), "�")
					b.pending = nil
				}
				b.err = io.EOF
			} else {
				b.err = &TransportError{Err: err}
			}
			if frag != "" {
				return frag, nil
			}
			return "", b.err
		}

		if frag != "" {
			return frag, nil
		}
	}
}

// decode returns the longest prefix of pending+p that ends on a rune boundary
// and keeps any incomplete trailing rune for the next read.
func (b *Body) decode(p []byte) string {
	data := append(b.pending, p...)
	cut := len(data)
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
	}
	b.pending = append([]byte(nil), data[cut:]...)
	return string(data[:cut])
}

// Close closes the underlying connection.
func (b *Body) Close() error {
	return b.rc.Close()
}
