// Package export brackets every export call with a transient snapshot so the
// exported data is a consistent point-in-time view of the image.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"rbd-backup/src/cephapi"
	"rbd-backup/src/layout"
)

// Snapshots is the snapshot manager surface the engine uses.
type Snapshots interface {
	Create(ctx context.Context, image, label string) error
	Delete(ctx context.Context, image, label string) error
}

// Transport writes snapshot contents to a file. It is satisfied by
// *cephapi.Session.
type Transport interface {
	ExportFull(ctx context.Context, image, snap, dest string) error
	ExportDiff(ctx context.Context, image, fromSnap, snap, dest string) error
}

type Engine struct {
	snaps     Snapshots
	transport Transport
	log       logrus.FieldLogger
}

func NewEngine(snaps Snapshots, transport Transport, log logrus.FieldLogger) *Engine {
	return &Engine{snaps: snaps, transport: transport, log: log}
}

// ExportFull snapshots image as label, writes the whole snapshot to
// dir/<image>_<label>.img and removes the snapshot again. It returns the
// artifact path.
func (e *Engine) ExportFull(ctx context.Context, image, label, dir string) (string, error) {
	dest := filepath.Join(dir, layout.FullArtifactName(image, label))
	err := e.bracket(ctx, image, label, func() error {
		e.log.Infof("Attempting to export the snapshot %s to %s", cephapi.SnapshotSpec(image, label), dest)
		return e.transport.ExportFull(ctx, image, label, dest)
	})
	if err != nil {
		e.log.Errorf("Failed to export image %s", image)
		return "", err
	}
	return dest, nil
}

// ExportDiff snapshots image as label and writes the blocks changed since
// fromLabel to dir/diffs/diff_<image>_<label>.img. dir is the image directory.
func (e *Engine) ExportDiff(ctx context.Context, image, label, fromLabel, dir string) (string, error) {
	dest := filepath.Join(dir, layout.DiffsDirName, layout.DiffArtifactName(image, label))
	err := e.bracket(ctx, image, label, func() error {
		e.log.Infof("Attempting to export a diff of %s from %s to %s",
			cephapi.SnapshotSpec(image, label), cephapi.SnapshotSpec(image, fromLabel), dest)
		return e.transport.ExportDiff(ctx, image, fromLabel, label, dest)
	})
	if err != nil {
		e.log.Errorf("Failed to export diff image %s", image)
		return "", err
	}
	return dest, nil
}

// bracket runs export between creating and deleting the transient snapshot.
// When the snapshot cannot be created nothing else runs. When export fails the
// snapshot is still removed and a cleanup failure is joined to the export error.
func (e *Engine) bracket(ctx context.Context, image, label string, export func() error) error {
	if err := e.snaps.Create(ctx, image, label); err != nil {
		return err
	}
	if err := export(); err != nil {
		// An interrupted export must still release its snapshot.
		if delErr := e.snaps.Delete(context.WithoutCancel(ctx), image, label); delErr != nil {
			e.log.Errorf("Transient snapshot %s left behind", cephapi.SnapshotSpec(image, label))
			return errors.Join(err, fmt.Errorf("cleanup after failed export: %w", delErr))
		}
		return err
	}
	return e.snaps.Delete(ctx, image, label)
}
