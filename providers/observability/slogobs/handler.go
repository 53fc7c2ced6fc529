package slogobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
)

// Handler is a slog.Handler rendering compact, pretty or JSON output.
type Handler struct {
	format Format
	level  slog.Level
	output io.Writer
	colors bool
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Format Format
	Level  slog.Level
	Output io.Writer // defaults to os.Stderr
	Colors bool      // ignored for FormatJSON; auto-enabled on terminals
}

// NewHandler creates a Handler.
func NewHandler(opts *HandlerOptions) *Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	format := opts.Format
	if format == "" {
		format = FormatCompact
	}

	colors := opts.Colors
	if !colors && format != FormatJSON {
		if f, ok := output.(*os.File); ok {
			colors = isTerminal(f)
		}
	}
	if format == FormatJSON {
		colors = false
	}

	return &Handler{
		format: format,
		level:  opts.Level,
		output: output,
		colors: colors,
		mu:     &sync.Mutex{},
	}
}

// Enabled reports whether records at level are written.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle renders and writes one record.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var line []byte
	var err error
	switch h.format {
	case FormatJSON:
		line, err = h.renderJSON(r)
	case FormatPretty:
		line = h.renderPretty(r)
	default:
		line = h.renderCompact(r)
	}
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.output.Write(line)
	return err
}

// WithAttrs returns a Handler that adds attrs to every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(slices.Clone(h.attrs), h.qualify(attrs)...)
	return &clone
}

// WithGroup returns a Handler that prefixes later attribute keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clone(h.groups), name)
	return &clone
}

func (h *Handler) qualify(attrs []slog.Attr) []slog.Attr {
	if len(h.groups) == 0 {
		return attrs
	}
	prefix := ""
	for _, group := range h.groups {
		prefix += group + "."
	}
	qualified := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		qualified[i] = slog.Attr{Key: prefix + attr.Key, Value: attr.Value}
	}
	return qualified
}

// collect returns handler and record attributes in insertion order.
func (h *Handler) collect(r slog.Record) []slog.Attr {
	attrs := slices.Clone(h.attrs)
	recordAttrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(attr slog.Attr) bool {
		recordAttrs = append(recordAttrs, attr)
		return true
	})
	return append(attrs, h.qualify(recordAttrs)...)
}

func attrMap(attrs []slog.Attr) map[string]any {
	values := make(map[string]any, len(attrs))
	for _, attr := range attrs {
		values[attr.Key] = attr.Value.Resolve().Any()
	}
	return values
}

func (h *Handler) level5(level slog.Level) string {
	name := fmt.Sprintf("%5s", levelString(level))
	if h.colors {
		return colorForLevel(level) + name + colorReset
	}
	return name
}

func (h *Handler) renderCompact(r slog.Record) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, r.Time.Format("2006-01-02 15:04:05")...)
	buf = append(buf, ' ')
	buf = append(buf, h.level5(r.Level)...)
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	if attrs := h.collect(r); len(attrs) > 0 {
		encoded, err := json.Marshal(attrMap(attrs))
		buf = append(buf, " -> "...)
		if err != nil {
			buf = append(buf, "[unencodable attributes]"...)
		} else {
			buf = append(buf, encoded...)
		}
	}
	return append(buf, '\n')
}

func (h *Handler) renderPretty(r slog.Record) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, r.Time.Format("2006-01-02 15:04:05")...)
	buf = append(buf, ' ')
	buf = append(buf, h.level5(r.Level)...)
	buf = append(buf, "  "...)
	buf = append(buf, r.Message...)
	buf = append(buf, '\n')

	attrs := h.collect(r)
	for i, attr := range attrs {
		branch := "|- "
		if i == len(attrs)-1 {
			branch = "`- "
		}
		buf = append(buf, "                    "...)
		buf = append(buf, branch...)
		buf = append(buf, attr.Key...)
		buf = append(buf, ": "...)
		buf = append(buf, fmt.Sprintf("%v", attr.Value.Resolve().Any())...)
		buf = append(buf, '\n')
	}
	return buf
}

func (h *Handler) renderJSON(r slog.Record) ([]byte, error) {
	data := attrMap(h.collect(r))
	data["time"] = r.Time.Format("2006-01-02T15:04:05.000Z07:00")
	data["level"] = levelString(r.Level)
	data["msg"] = r.Message

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(encoded, '\n'), nil
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

func colorForLevel(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return colorGray
	case level < slog.LevelInfo:
		return colorBlue
	case level < slog.LevelWarn:
		return colorGreen
	case level < slog.LevelError:
		return colorYellow
	default:
		return colorRed
	}
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
