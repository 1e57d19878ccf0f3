package misc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"runtime"
	"time"

	"golang.org/x/term"
)

func Errorf(logger *slog.Logger, format string, args ...any) {
	helperf(logger, slog.LevelError, format, args...)
}

func Warnf(logger *slog.Logger, format string, args ...any) {
	helperf(logger, slog.LevelWarn, format, args...)
}

func Infof(logger *slog.Logger, format string, args ...any) {
	helperf(logger, slog.LevelInfo, format, args...)
}

func Debugf(logger *slog.Logger, format string, args ...any) {
	helperf(logger, slog.LevelDebug, format, args...)
}

func helperf(logger *slog.Logger, level slog.Level, format string, args ...any) {
	if !logger.Enabled(context.Background(), level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip [Callers, helperf, [info/warn/debug]f]
	r := slog.NewRecord(time.Now(), level, fmt.Sprintf(format, args...), pcs[0])
	_ = logger.Handler().Handle(context.Background(), r)
}

// NewLogger picks the terse handler for interactive use and structured json (with cloud logging
// friendly key names) otherwise. DEBUG=1 in the environment enables debug output.
func NewLogger(out *os.File) *slog.Logger {
	opts := slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelInfo,
	}
	if os.Getenv("DEBUG") == "1" {
		opts.Level = slog.LevelDebug
	}
	if term.IsTerminal(int(out.Fd())) {
		return slog.New(NewMinimalHandler(out, MinimalHandlerOptions{SlogOpts: opts}))
	}
	opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 {
			switch a.Key {
			case slog.MessageKey:
				a.Key = "message"
			case slog.LevelKey:
				a.Key = "severity"
			}
		}
		return a
	}
	return slog.New(slog.NewJSONHandler(out, &opts))
}

type MinimalHandlerOptions struct {
	SlogOpts slog.HandlerOptions
}

// MinimalHandler prints just the message followed by any attributes as a json object.
type MinimalHandler struct {
	slog.Handler
	l     *log.Logger
	attrs []slog.Attr
}

func (h *MinimalHandler) Handle(ctx context.Context, r slog.Record) error {
	var (
		extra string
	)
	if r.NumAttrs()+len(h.attrs) > 0 {
		fields := make(map[string]any, r.NumAttrs()+len(h.attrs))
		add := func(a slog.Attr) bool {
			fields[a.Key] = fmt.Sprintf("%v", a.Value.Resolve().Any())
			return true
		}
		for _, a := range h.attrs {
			add(a)
		}
		r.Attrs(add)

		b, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		extra = string(b)
	}

	h.l.Println(r.Message, extra)

	return nil
}

func (h *MinimalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MinimalHandler{
		Handler: h.Handler.WithAttrs(attrs),
		l:       h.l,
		attrs:   append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func NewMinimalHandler(out io.Writer, opts MinimalHandlerOptions) *MinimalHandler {
	h := &MinimalHandler{
		Handler: slog.NewJSONHandler(out, &opts.SlogOpts),
		l:       log.New(out, "", 0),
	}

	return h
}
