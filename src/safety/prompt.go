// Package safety gates commands that remove snapshots.
package safety

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Options mirrors the global --dry-run and --yes flags.
type Options struct {
	DryRun bool
	Yes    bool
}

// Confirm asks question on out and reads the answer from in. Dry runs always
// decline and --yes always accepts, both without prompting.
func Confirm(opts Options, in io.Reader, out io.Writer, question string) (bool, error) {
	if opts.DryRun {
		return false, nil
	}
	if opts.Yes {
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
