// Package logging builds the logrus logger shared by every command.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// TimestampLayout is the time prefix of every log line.
const TimestampLayout = "2006-01-02 15:04:05,000"

// EventField tags the entries that are also written to the monitoring log.
// LineFormatter never prints it.
const EventField = "event"

// Event returns an entry tagged for the monitoring log.
func Event(log logrus.FieldLogger) *logrus.Entry {
	return log.WithField(EventField, true)
}

// LineFormatter renders "<timestamp> - <LEVEL> - <message>[ key=value ...]".
// Fields are sorted by key.
type LineFormatter struct{}

func (LineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(e.Time.Format(TimestampLayout))
	b.WriteString(" - ")
	b.WriteString(strings.ToUpper(e.Level.String()))
	b.WriteString(" - ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k == EventField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := e.Data[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Options selects the sinks of the logger.
type Options struct {
	Verbose bool
	// LogFile is appended to across runs. Empty disables it.
	LogFile string
	// MonitoringLog is truncated at the start of every run and receives only
	// the entries tagged with EventField. The monitor command reads it. Empty
	// disables it.
	MonitoringLog string
	// Stderr receives a copy of every line when Verbose is set.
	Stderr io.Writer
}

// New opens the configured sinks and returns the logger together with a func
// that closes them.
func New(opts Options) (*logrus.Logger, func() error, error) {
	var (
		writers []io.Writer
		files   []*os.File
	)
	closeAll := func() error {
		var first error
		for _, f := range files {
			if err := f.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	open := func(path string, flag int) (*os.File, error) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(path, flag, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		files = append(files, f)
		return f, nil
	}

	if opts.LogFile != "" {
		f, err := open(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
	}
	var events *eventHook
	if opts.MonitoringLog != "" {
		f, err := open(opts.MonitoringLog, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		events = &eventHook{w: f}
	}
	if opts.Verbose && opts.Stderr != nil {
		writers = append(writers, opts.Stderr)
	}

	log := logrus.New()
	log.SetFormatter(LineFormatter{})
	log.SetLevel(logrus.InfoLevel)
	if opts.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	switch len(writers) {
	case 0:
		log.SetOutput(io.Discard)
	case 1:
		log.SetOutput(writers[0])
	default:
		log.SetOutput(io.MultiWriter(writers...))
	}
	if events != nil {
		log.AddHook(events)
	}
	return log, closeAll, nil
}

// eventHook writes the entries tagged with EventField to w.
type eventHook struct {
	mu sync.Mutex
	w  io.Writer
}

func (h *eventHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *eventHook) Fire(e *logrus.Entry) error {
	if tagged, _ := e.Data[EventField].(bool); !tagged {
		return nil
	}
	b, err := LineFormatter{}.Format(e)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(b)
	return err
}
