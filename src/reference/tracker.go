// Package reference maintains the per-image reference snapshot that serves as
// the base of the next differential export.
package reference

import (
	"context"

	"github.com/sirupsen/logrus"

	"rbd-backup/src/cephapi"
)

// Snapshots is the snapshot manager surface the tracker uses.
type Snapshots interface {
	Create(ctx context.Context, image, label string) error
	Delete(ctx context.Context, image, label string) error
	HasReference(ctx context.Context, image string) (bool, error)
}

// FullExporter performs a bracketed full export into dir.
type FullExporter interface {
	ExportFull(ctx context.Context, image, label, dir string) (string, error)
}

// Tracker keeps at most one reference snapshot per image.
//
// Rolling the reference forward is a delete followed by a create. The pair is
// not atomic: if the process dies in between, the image has no reference and
// the next EnsureBaseline exports a fresh full base.
type Tracker struct {
	snaps    Snapshots
	exporter FullExporter
	log      logrus.FieldLogger
}

func NewTracker(snaps Snapshots, exporter FullExporter, log logrus.FieldLogger) *Tracker {
	return &Tracker{snaps: snaps, exporter: exporter, log: log}
}

// HasReference reports whether image carries the reference snapshot.
func (t *Tracker) HasReference(ctx context.Context, image string) (bool, error) {
	return t.snaps.HasReference(ctx, image)
}

// EnsureBaseline makes sure image has a reference snapshot. Without one, the
// image is exported in full at runLabel into imageDir as the restore base and
// the reference is created afterwards. It returns the artifact path of the
// base export, or "" when the reference already existed.
func (t *Tracker) EnsureBaseline(ctx context.Context, image, runLabel, imageDir string) (string, error) {
	ok, err := t.snaps.HasReference(ctx, image)
	if err != nil {
		return "", err
	}
	if ok {
		return "", nil
	}
	return t.Establish(ctx, image, runLabel, imageDir)
}

// Establish exports the full restore base and creates the first reference
// snapshot. The caller has already found the reference missing.
func (t *Tracker) Establish(ctx context.Context, image, runLabel, imageDir string) (string, error) {
	t.log.Infof("Image %s has no previous state! The full image will also be exported", image)
	path, err := t.exporter.ExportFull(ctx, image, runLabel, imageDir)
	if err != nil {
		return "", err
	}
	t.log.Infof("Creating the first reference snapshot of %s", image)
	if err := t.snaps.Create(ctx, image, cephapi.ReferenceSnapshot); err != nil {
		return path, err
	}
	return path, nil
}

// RollForward moves the reference to the image's current state.
func (t *Tracker) RollForward(ctx context.Context, image string) error {
	t.log.Infof("Updating the reference snapshot of %s", image)
	if err := t.snaps.Delete(ctx, image, cephapi.ReferenceSnapshot); err != nil {
		return err
	}
	return t.snaps.Create(ctx, image, cephapi.ReferenceSnapshot)
}

// Reset drops the reference of image so that the next differential run starts
// over with a full base export. It reports whether a reference was removed.
func Reset(ctx context.Context, snaps Snapshots, image string) (bool, error) {
	ok, err := snaps.HasReference(ctx, image)
	if err != nil || !ok {
		return false, err
	}
	if err := snaps.Delete(ctx, image, cephapi.ReferenceSnapshot); err != nil {
		return false, err
	}
	return true, nil
}
