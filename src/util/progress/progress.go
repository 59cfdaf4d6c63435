// Package progress reports how far a long read has come.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Interval is the minimum delay between two updates.
var Interval = 500 * time.Millisecond

// Reader wraps an io.Reader and writes "\r[label] done/total (pct)" updates
// to out. A nil out disables reporting.
type Reader struct {
	r     io.Reader
	out   io.Writer
	label string
	total uint64

	mu   sync.Mutex
	done uint64
	last time.Time
	eof  bool
}

// NewReader wraps r. A total of 0 omits the percentage.
func NewReader(r io.Reader, total uint64, label string, out io.Writer) *Reader {
	return &Reader{r: r, out: out, label: label, total: total}
}

func (p *Reader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += uint64(n)
	if err == io.EOF && !p.eof {
		p.eof = true
		p.print()
		if p.out != nil {
			fmt.Fprint(p.out, "\n")
		}
		return n, err
	}
	if n > 0 && time.Since(p.last) >= Interval {
		p.print()
		p.last = time.Now()
	}
	return n, err
}

// Done is the number of bytes read so far.
func (p *Reader) Done() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Reader) print() {
	if p.out == nil {
		return
	}
	if p.total > 0 {
		pct := float64(p.done) / float64(p.total) * 100
		fmt.Fprintf(p.out, "\r[%s] %s/%s (%.1f%%)", p.label, humanize.IBytes(p.done), humanize.IBytes(p.total), pct)
		return
	}
	fmt.Fprintf(p.out, "\r[%s] %s", p.label, humanize.IBytes(p.done))
}
