// ABOUTME: Tests for the streaming transport against httptest servers
// ABOUTME: Covers request encoding, error bodies, UTF-8 boundaries, and dropped connections

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, b *Body) (string, error) {
	t.Helper()
	var sb strings.Builder
	for {
		frag, err := b.Next()
		sb.WriteString(frag)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sb.String(), nil
			}
			return sb.String(), err
		}
	}
}

func TestOpen_MultipartForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Hello", r.FormValue("message"))
		assert.Equal(t, "true", r.FormValue("stream"))
		assert.Equal(t, "", r.FormValue("session_id"))
		_, _ = io.WriteString(w, `{"event":"RunStarted"}`+"\n")
	}))
	defer srv.Close()

	body, err := Open(context.Background(), srv.Client(), &Request{
		URL: srv.URL,
		Form: []FormField{
			{Name: "message", Value: "Hello"},
			{Name: "stream", Value: "true"},
			{Name: "session_id", Value: ""},
		},
	})
	require.NoError(t, err)
	defer body.Close()

	got, err := readAll(t, body)
	require.NoError(t, err)
	assert.Equal(t, `{"event":"RunStarted"}`+"\n", got)
}

func TestOpen_JSONBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "*/*", r.Header.Get("Accept"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"user_message": "Hi"}, body["input"])
		assert.Equal(t, "S1", body["session_id"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	body, err := Open(context.Background(), srv.Client(), &Request{
		URL: srv.URL,
		JSON: map[string]any{
			"input":      map[string]any{"user_message": "Hi"},
			"user_id":    nil,
			"session_id": "S1",
		},
		Header: map[string]string{"Content-Type": "application/json", "Accept": "*/*"},
	})
	require.NoError(t, err)
	defer body.Close()

	got, err := readAll(t, body)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpen_ErrorStatus(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "detail", body: `{"detail":"Agent not found"}`, wantMsg: "Agent not found"},
		{name: "error key", body: `{"error":"bad input"}`, wantMsg: "bad input"},
		{name: "plain text", body: "upstream exploded", wantMsg: "upstream exploded"},
		{name: "empty", body: "", wantMsg: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := Open(context.Background(), srv.Client(), &Request{URL: srv.URL})
			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, http.StatusNotFound, te.StatusCode)
			assert.Equal(t, tt.wantMsg, te.Message())
			assert.Contains(t, te.Error(), "404")
		})
	}
}

func TestOpen_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := Open(context.Background(), http.DefaultClient, &Request{URL: url})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
	assert.Contains(t, te.Error(), "transport")
}

// chunkedReader returns one chunk per Read and then err.
type chunkedReader struct {
	chunks [][]byte
	err    error
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func (c *chunkedReader) Close() error { return nil }

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func openChunks(t *testing.T, r *chunkedReader) *Body {
	t.Helper()
	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Status: "200 OK", Body: r}, nil
	})
	body, err := Open(context.Background(), doer, &Request{URL: "http://playground.test/run"})
	require.NoError(t, err)
	return body
}

func TestBody_RuneSplitAcrossReads(t *testing.T) {
	word := []byte("héllo ✓")
	// Split inside the two-byte é and inside the three-byte check mark.
	body := openChunks(t, &chunkedReader{chunks: [][]byte{word[:2], word[2:8], word[8:]}})

	var frags []string
	for {
		frag, err := body.Next()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		frags = append(frags, frag)
	}
	for _, f := range frags {
		assert.True(t, strings.ToValidUTF8(f, "") == f, "fragment %q is not valid UTF-8", f)
	}
	assert.Equal(t, "héllo ✓", strings.Join(frags, ""))
}

func TestBody_ConnectionDrop(t *testing.T) {
	drop := errors.New("unexpected EOF from peer")
	body := openChunks(t, &chunkedReader{chunks: [][]byte{[]byte(`{"a":1}`)}, err: drop})

	frag, err := body.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, frag)

	_, err = body.Next()
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, drop)
}
