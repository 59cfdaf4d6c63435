// Package target parses the location of the backup tree.
package target

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Target is a parsed backup location such as "dir:/mnt/backup/ceph" or the
// bare path "/mnt/backup/ceph".
type Target struct {
	Raw     string
	Scheme  string
	DirPath string // cleaned absolute path for the dir scheme
}

// SupportedSchemes lists the schemes the parser accepts.
var SupportedSchemes = map[string]struct{}{
	"dir": {},
}

// Parse parses raw. A value without a scheme is read as a directory path.
func Parse(raw string) (Target, error) {
	t := Target{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return t, fmt.Errorf("target must not be empty; expected 'dir:/path' or '/path'")
	}

	scheme, val := "dir", s
	if !strings.HasPrefix(s, "/") {
		i := strings.Index(s, ":")
		if i <= 0 {
			return t, fmt.Errorf("invalid target %q; expected 'dir:/path' or an absolute path", raw)
		}
		scheme = strings.ToLower(strings.TrimSpace(s[:i]))
		val = strings.TrimSpace(s[i+1:])
	}
	if !IsSupported(scheme) {
		return t, fmt.Errorf("unsupported target scheme %q", scheme)
	}
	t.Scheme = scheme

	if val == "" {
		return t, fmt.Errorf("directory target path must not be empty")
	}
	clean := filepath.Clean(val)
	if !filepath.IsAbs(clean) {
		return t, fmt.Errorf("directory target must be an absolute path: %q", val)
	}
	t.DirPath = clean
	return t, nil
}

// IsSupported returns true if the scheme is recognized.
func IsSupported(scheme string) bool {
	_, ok := SupportedSchemes[strings.ToLower(scheme)]
	return ok
}

func (t Target) String() string {
	if t.Scheme != "" && t.DirPath != "" {
		return t.Scheme + ":" + t.DirPath
	}
	return t.Raw
}
