// Package monitoring turns the backup event log into per-image status and
// duration records for the monitoring agent.
package monitoring

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Event line vocabulary shared by the writer (FormatEvent) and Parse.
const (
	Marker      = "BACKUP"
	Separator   = " - "
	StatusStart = "START"
	StatusEnd   = "END"
)

// ErrMalformedLine is matched by every LineError.
var ErrMalformedLine = errors.New("malformed backup log line")

// LineError points at the selected log line that did not have the expected
// field arrangement.
type LineError struct {
	Line   int
	Text   string
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

func (e *LineError) Is(target error) bool { return target == ErrMalformedLine }

// FormatEvent renders the message of a backup event. The logger prefixes it
// with "<date> <time> - <LEVEL> - ".
func FormatEvent(status, backupType, image string) string {
	return strings.Join([]string{status, backupType, Marker, image}, Separator)
}

// Event is the last record seen for one (image, status) pair.
type Event struct {
	BackupType string
	Date       string
	Time       string // HH:MM:SS
}

// Result is the aggregated outcome for one image.
type Result struct {
	Image   string
	Status  int
	Elapsed float64 // seconds
}

const clockLayout = "15:04:05"

// Parse reads a log, keeps the lines containing Marker and aggregates them per
// image in order of first appearance. The first selected line that does not
// match "<date> <time> - <level> - <status> - <type> - ... - <image>" aborts
// parsing with a *LineError.
func Parse(r io.Reader) ([]Result, error) {
	var order []string
	events := map[string]map[string]Event{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Text()
		if !strings.Contains(line, Marker) {
			continue
		}
		image, status, ev, err := parseLine(line)
		if err != nil {
			return nil, &LineError{Line: n, Text: line, Reason: err.Error()}
		}
		if _, ok := events[image]; !ok {
			events[image] = map[string]Event{}
			order = append(order, image)
		}
		events[image][status] = ev
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read monitoring log: %w", err)
	}

	results := make([]Result, 0, len(order))
	for _, image := range order {
		res := Result{Image: image}
		start, hasStart := events[image][StatusStart]
		end, hasEnd := events[image][StatusEnd]
		if hasStart && hasEnd {
			res.Status = 1
			res.Elapsed = elapsed(start.Time, end.Time)
		}
		results = append(results, res)
	}
	return results, nil
}

func parseLine(line string) (image, status string, ev Event, err error) {
	fields := strings.Split(line, Separator)
	if len(fields) < 5 {
		return "", "", Event{}, fmt.Errorf("expected at least 5 fields, got %d", len(fields))
	}
	stamp := strings.Fields(fields[0])
	if len(stamp) != 2 {
		return "", "", Event{}, errors.New("timestamp is not '<date> <time>'")
	}
	clock, _, _ := strings.Cut(stamp[1], ",")
	if _, perr := time.Parse(clockLayout, clock); perr != nil {
		return "", "", Event{}, fmt.Errorf("bad time %q", stamp[1])
	}
	image = strings.TrimSpace(fields[len(fields)-1])
	if image == "" {
		return "", "", Event{}, errors.New("empty image field")
	}
	status = strings.TrimSpace(fields[2])
	return image, status, Event{BackupType: strings.TrimSpace(fields[3]), Date: stamp[0], Time: clock}, nil
}

// elapsed is the time-of-day difference in whole seconds. A run that crosses
// midnight yields a negative value.
func elapsed(start, end string) float64 {
	s, _ := time.Parse(clockLayout, start)
	e, _ := time.Parse(clockLayout, end)
	return e.Sub(s).Truncate(time.Second).Seconds()
}
