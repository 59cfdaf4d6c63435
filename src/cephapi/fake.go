package cephapi

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FakeCluster is an in-memory Engine for unit tests. Every call is appended to
// Calls as "<op> <pool>/<image>@<snap>" so tests can assert ordering.
type FakeCluster struct {
	FSID string
	// Pools maps pool -> image names in enumeration order.
	Pools map[string][]string
	// Snaps maps pool/image -> snapshots in creation order.
	Snaps map[string][]Snapshot

	ConnectErr error
	// Failure injection keyed by "<op> <pool>/<image>@<snap>" (same format as Calls).
	Fail map[string]error

	Calls     []string
	Shutdowns int
	nextID    uint64
}

func NewFake() *FakeCluster {
	return &FakeCluster{
		FSID:  "00000000-0000-0000-0000-000000000000",
		Pools: map[string][]string{},
		Snaps: map[string][]Snapshot{},
		Fail:  map[string]error{},
	}
}

// AddImage registers an image in pool, creating the pool if needed.
func (f *FakeCluster) AddImage(pool, image string) {
	f.Pools[pool] = append(f.Pools[pool], image)
}

func (f *FakeCluster) record(op, pool, image, snap string) error {
	key := op + " " + pool
	if image != "" {
		key += "/" + image
	}
	if snap != "" {
		key += "@" + snap
	}
	f.Calls = append(f.Calls, key)
	return f.Fail[key]
}

// CallsWithPrefix returns the recorded calls whose operation matches op.
func (f *FakeCluster) CallsWithPrefix(op string) []string {
	var out []string
	for _, c := range f.Calls {
		if strings.HasPrefix(c, op+" ") {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeCluster) Connect(_ context.Context) (ClusterInfo, error) {
	if f.ConnectErr != nil {
		return ClusterInfo{}, f.ConnectErr
	}
	return ClusterInfo{FSID: f.FSID}, nil
}

func (f *FakeCluster) PoolExists(_ context.Context, pool string) (bool, error) {
	_, ok := f.Pools[pool]
	return ok, nil
}

func (f *FakeCluster) Shutdown() error {
	f.Shutdowns++
	return nil
}

func (f *FakeCluster) ListImages(_ context.Context, pool string) ([]string, error) {
	if err := f.record("ls", pool, "", ""); err != nil {
		return nil, err
	}
	imgs, ok := f.Pools[pool]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return append([]string(nil), imgs...), nil
}

func (f *FakeCluster) hasImage(pool, image string) bool {
	for _, img := range f.Pools[pool] {
		if img == image {
			return true
		}
	}
	return false
}

func (f *FakeCluster) findSnap(pool, image, snap string) int {
	for i, s := range f.Snaps[pool+"/"+image] {
		if s.Name == snap {
			return i
		}
	}
	return -1
}

func (f *FakeCluster) CreateSnapshot(_ context.Context, pool, image, snap string) error {
	if err := f.record("snap-create", pool, image, snap); err != nil {
		return err
	}
	if !f.hasImage(pool, image) {
		return fmt.Errorf("image %s/%s: %w", pool, image, ErrIO)
	}
	if f.findSnap(pool, image, snap) >= 0 {
		return ErrSnapshotExists
	}
	f.nextID++
	key := pool + "/" + image
	f.Snaps[key] = append(f.Snaps[key], Snapshot{ID: f.nextID, Name: snap, Size: 10 << 30})
	return nil
}

func (f *FakeCluster) DeleteSnapshot(_ context.Context, pool, image, snap string) error {
	if err := f.record("snap-rm", pool, image, snap); err != nil {
		return err
	}
	i := f.findSnap(pool, image, snap)
	if i < 0 {
		return ErrSnapshotNotFound
	}
	key := pool + "/" + image
	f.Snaps[key] = append(f.Snaps[key][:i], f.Snaps[key][i+1:]...)
	return nil
}

func (f *FakeCluster) ListSnapshots(_ context.Context, pool, image string) ([]Snapshot, error) {
	if err := f.record("snap-ls", pool, image, ""); err != nil {
		return nil, err
	}
	return append([]Snapshot(nil), f.Snaps[pool+"/"+image]...), nil
}

func (f *FakeCluster) ExportFull(_ context.Context, pool, image, snap, dest string) error {
	if err := f.record("export", pool, image, snap); err != nil {
		return err
	}
	if f.findSnap(pool, image, snap) < 0 {
		return &ExportError{Op: "export", Image: image, Snapshot: snap, Diagnostic: "snapshot not found"}
	}
	return os.WriteFile(dest, []byte("full "+SnapshotSpec(image, snap)+"\n"), 0o644)
}

func (f *FakeCluster) ExportDiff(_ context.Context, pool, image, fromSnap, snap, dest string) error {
	if err := f.record("export-diff", pool, image, snap); err != nil {
		return err
	}
	if f.findSnap(pool, image, fromSnap) < 0 || f.findSnap(pool, image, snap) < 0 {
		return &ExportError{Op: "export-diff", Image: image, Snapshot: snap, Diagnostic: "snapshot not found"}
	}
	return os.WriteFile(dest, []byte("diff "+fromSnap+".."+SnapshotSpec(image, snap)+"\n"), 0o644)
}
