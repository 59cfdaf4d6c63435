package directory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rbd-backup/src/backend"
	"rbd-backup/src/layout"
)

// Backend implements backend.StorageBackend for the <root>/<pool>/<image>
// layout.
type Backend struct {
	Root string // absolute directory path
}

func New(root string) (*Backend, error) {
	if root == "" {
		return nil, errors.New("directory backend root must not be empty")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}
	return &Backend{Root: root}, nil
}

// List returns the artifacts of pool sorted by image, label and kind. A pool
// without a directory has no artifacts.
func (b *Backend) List(pool, kind string) ([]backend.Entry, error) {
	if kind == "" {
		kind = backend.KindAll
	}
	switch kind {
	case backend.KindAll, backend.KindFull, backend.KindDiff:
	default:
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}

	poolDir := filepath.Join(b.Root, pool)
	images, err := readDirNames(poolDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []backend.Entry
	for _, image := range images {
		imageDir := filepath.Join(poolDir, image)
		if kind != backend.KindDiff {
			e, err := scan(imageDir, pool, image, backend.KindFull, image+"_")
			if err != nil {
				return nil, err
			}
			entries = append(entries, e...)
		}
		if kind != backend.KindFull {
			e, err := scan(filepath.Join(imageDir, layout.DiffsDirName), pool, image, backend.KindDiff, "diff_"+image+"_")
			if err != nil {
				return nil, err
			}
			entries = append(entries, e...)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, c := entries[i], entries[j]
		if a.Image != c.Image {
			return a.Image < c.Image
		}
		if a.Label != c.Label {
			return a.Label < c.Label
		}
		return a.Kind > c.Kind // full before diff
	})
	return entries, nil
}

// scan collects the <prefix><label>.img files of dir.
func scan(dir, pool, image, kind, prefix string) ([]backend.Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []backend.Entry
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".img") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, backend.Entry{
			Kind:     kind,
			Pool:     pool,
			Image:    image,
			Label:    strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".img"),
			Size:     uint64(info.Size()),
			Modified: info.ModTime(),
			Path:     filepath.Join(dir, name),
		})
	}
	return out, nil
}

func readDirNames(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
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
	return names, nil
}
