package snapshot

import (
	"context"

	"github.com/sirupsen/logrus"

	"rbd-backup/src/cephapi"
)

// Store is the subset of the cluster session the manager needs.
type Store interface {
	CreateSnapshot(ctx context.Context, image, snap string) error
	DeleteSnapshot(ctx context.Context, image, snap string) error
	ListSnapshots(ctx context.Context, image string) ([]cephapi.Snapshot, error)
}

// Manager creates, deletes and lists snapshots of the images of one pool.
// Errors are returned as *cephapi.SnapshotError wrapping the engine's kind.
type Manager struct {
	store Store
	log   logrus.FieldLogger
}

func NewManager(store Store, log logrus.FieldLogger) *Manager {
	return &Manager{store: store, log: log}
}

// Create takes snapshot label of image. A taken label fails with
// cephapi.ErrSnapshotExists.
func (m *Manager) Create(ctx context.Context, image, label string) error {
	spec := cephapi.SnapshotSpec(image, label)
	m.log.Infof("Attempting to create snapshot %s", spec)
	if err := m.store.CreateSnapshot(ctx, image, label); err != nil {
		m.log.Errorf("Failed to create snapshot %s", spec)
		return &cephapi.SnapshotError{Op: "create", Image: image, Snapshot: label, Err: err}
	}
	m.log.Infof("Snapshot %s successfully created", spec)
	return nil
}

// Delete removes snapshot label of image.
func (m *Manager) Delete(ctx context.Context, image, label string) error {
	spec := cephapi.SnapshotSpec(image, label)
	m.log.Infof("Attempting to delete snapshot %s", spec)
	if err := m.store.DeleteSnapshot(ctx, image, label); err != nil {
		m.log.Errorf("Failed to delete snapshot %s", spec)
		return &cephapi.SnapshotError{Op: "delete", Image: image, Snapshot: label, Err: err}
	}
	m.log.Infof("Snapshot %s successfully deleted", spec)
	return nil
}

// List returns the snapshots of image in engine order.
func (m *Manager) List(ctx context.Context, image string) ([]cephapi.Snapshot, error) {
	snaps, err := m.store.ListSnapshots(ctx, image)
	if err != nil {
		return nil, &cephapi.SnapshotError{Op: "list", Image: image, Err: err}
	}
	return snaps, nil
}

// HasReference reports whether image carries the reference snapshot.
func (m *Manager) HasReference(ctx context.Context, image string) (bool, error) {
	snaps, err := m.List(ctx, image)
	if err != nil {
		return false, err
	}
	for _, s := range snaps {
		if s.Name == cephapi.ReferenceSnapshot {
			return true, nil
		}
	}
	return false, nil
}
