// ABOUTME: Logger setup for coven-playground: JSON or colorized text on stderr
// ABOUTME: While a response streams, text records drop the timestamp and start on a fresh line

package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"

	"github.com/2389/coven-playground/internal/config"
)

// setupLogger builds the process logger. live, when non-nil, reports whether a
// response is being printed to the terminal.
func setupLogger(w io.Writer, cfg config.LoggingConfig, debug bool, live *atomic.Bool) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Level != "" {
		// Validate has already rejected unknown levels.
		_ = level.UnmarshalText([]byte(cfg.Level))
	}
	if debug {
		level = slog.LevelDebug
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(&colorHandler{
		out:   w,
		mu:    &sync.Mutex{},
		level: level,
		live:  live,
	})
}

// levelTag is evaluated per record so --no-color applies after startup.
func levelTag(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return color.MagentaString("DBG ")
	case slog.LevelInfo:
		return color.CyanString("INF ")
	case slog.LevelWarn:
		return color.YellowString("WRN ")
	case slog.LevelError:
		return color.New(color.FgRed, color.Bold).Sprint("ERR ")
	default:
		return "??? "
	}
}

// colorHandler writes one colorized line per record. Writes are serialized
// across handlers derived with WithAttrs and WithGroup.
type colorHandler struct {
	out    io.Writer
	mu     *sync.Mutex
	level  slog.Level
	live   *atomic.Bool
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	if h.live != nil && h.live.Load() {
		// The response line on stdout is still open.
		buf.WriteString("\n")
	} else {
		buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))
	}

	buf.WriteString(levelTag(r.Level))
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&buf, a.Key, a.Value)
	}
	prefix := h.groupPrefix()
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, prefix+a.Key, a.Value)
		return true
	})
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func writeAttr(buf *strings.Builder, key string, v slog.Value) {
	buf.WriteString(color.HiBlackString(" " + key + "="))
	buf.WriteString(v.String())
}

func (h *colorHandler) groupPrefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

func (h *colorHandler) clone() *colorHandler {
	c := *h
	return &c
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := h.groupPrefix()
	c := h.clone()
	c.attrs = make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(c.attrs, h.attrs)
	for _, a := range attrs {
		c.attrs = append(c.attrs, slog.Attr{Key: prefix + a.Key, Value: a.Value})
	}
	return c
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	c := h.clone()
	c.groups = append(append([]string(nil), h.groups...), name)
	return c
}
