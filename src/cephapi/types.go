package cephapi

import "context"

// ReferenceSnapshot is the label of the persistent snapshot used as the base of
// the next differential export.
const ReferenceSnapshot = "dummy"

// ConnParams identifies the cluster and the credentials used to reach it.
type ConnParams struct {
	ConfFile string
	Keyring  string
	// Client is the cephx id without the "client." prefix.
	Client string
}

// ClusterInfo exposes the cluster metadata we log after connecting.
type ClusterInfo struct {
	FSID string
}

// Snapshot models a single RBD snapshot as listed by the storage engine.
type Snapshot struct {
	ID   uint64
	Name string
	Size uint64
}

// Cluster is a narrow interface over the storage engine used by the backup core.
// Keep it small so the in-memory fake stays honest.
type Cluster interface {
	// Connection
	Connect(ctx context.Context) (ClusterInfo, error)
	PoolExists(ctx context.Context, pool string) (bool, error)
	Shutdown() error

	// Images and snapshots
	ListImages(ctx context.Context, pool string) ([]string, error)
	CreateSnapshot(ctx context.Context, pool, image, snap string) error
	DeleteSnapshot(ctx context.Context, pool, image, snap string) error
	ListSnapshots(ctx context.Context, pool, image string) ([]Snapshot, error)
}

// Exporter is the transport that writes snapshot contents to files. A failed
// export is reported as an *ExportError carrying the engine's diagnostic text.
type Exporter interface {
	ExportFull(ctx context.Context, pool, image, snap, dest string) error
	ExportDiff(ctx context.Context, pool, image, fromSnap, snap, dest string) error
}

// Engine is what a real binding provides: cluster access plus export transport.
type Engine interface {
	Cluster
	Exporter
}

// SnapshotSpec renders the canonical <image>@<label> form.
func SnapshotSpec(image, snap string) string {
	return image + "@" + snap
}
