// Package checksum records and verifies xxh3 digests of exported artifacts.
//
// Each image directory holds a checksums.txt with one "<hex digest>  <path>"
// line per artifact, the path relative to the image directory.
package checksum

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"rbd-backup/src/util/progress"
)

// FileName is the per-image checksum list.
const FileName = "checksums.txt"

// Verification states.
const (
	StatusOK       = "ok"
	StatusMismatch = "mismatch"
	StatusMissing  = "missing"
)

// Sum returns the hex xxh3-128 digest of the file at path. Progress is written
// to out when it is not nil.
func Sum(path string, out io.Writer) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var size uint64
	if info, err := f.Stat(); err == nil {
		size = uint64(info.Size())
	}
	h := xxh3.New()
	if _, err := io.Copy(h, progress.NewReader(f, size, filepath.Base(path), out)); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum128().Bytes()), nil
}

// Recorder appends artifact digests to the checksum list of their image.
type Recorder struct {
	Progress io.Writer
}

// Record hashes artifact, which must live under imageDir, and appends the
// digest to imageDir/checksums.txt.
func (r Recorder) Record(imageDir, artifact string) error {
	rel, err := filepath.Rel(imageDir, artifact)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("artifact %s is outside %s", artifact, imageDir)
	}
	sum, err := Sum(artifact, r.Progress)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(imageDir, FileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "%s  %s\n", sum, filepath.ToSlash(rel)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Result is the verification outcome of one recorded artifact.
type Result struct {
	Image  string `json:"image"`
	File   string `json:"file"`
	Status string `json:"status"`
}

// VerifyImage checks every entry of imageDir/checksums.txt. A later entry for
// the same file replaces an earlier one.
func VerifyImage(imageDir string) ([]Result, error) {
	f, err := os.Open(filepath.Join(imageDir, FileName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	image := filepath.Base(imageDir)
	want := map[string]string{}
	var order []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sum, name, ok := strings.Cut(line, "  ")
		if !ok {
			return nil, fmt.Errorf("%s: malformed line %q", filepath.Join(imageDir, FileName), line)
		}
		if _, seen := want[name]; !seen {
			order = append(order, name)
		}
		want[name] = sum
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(order))
	for _, name := range order {
		res := Result{Image: image, File: name, Status: StatusOK}
		got, err := Sum(filepath.Join(imageDir, filepath.FromSlash(name)), nil)
		switch {
		case os.IsNotExist(err):
			res.Status = StatusMissing
		case err != nil:
			return nil, err
		case !strings.EqualFold(got, want[name]):
			res.Status = StatusMismatch
		}
		results = append(results, res)
	}
	return results, nil
}

// VerifyPool verifies every image directory under poolDir that carries a
// checksum list, in name order.
func VerifyPool(poolDir string) ([]Result, error) {
	entries, err := os.ReadDir(poolDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []Result
	for _, name := range names {
		dir := filepath.Join(poolDir, name)
		if _, err := os.Stat(filepath.Join(dir, FileName)); os.IsNotExist(err) {
			continue
		}
		res, err := VerifyImage(dir)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}
