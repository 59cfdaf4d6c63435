// Package orchestrator drives one sequential backup run over the images of a
// pool, choosing between full and differential exports per invocation.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rbd-backup/src/catalog"
	"rbd-backup/src/cephapi"
	"rbd-backup/src/export"
	"rbd-backup/src/layout"
	"rbd-backup/src/logging"
	"rbd-backup/src/monitoring"
	"rbd-backup/src/reference"
	"rbd-backup/src/snapshot"
)

type Mode string

const (
	ModeFull Mode = "full"
	ModeDiff Mode = "diff"
)

// ParseMode accepts "full" and "diff".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeDiff:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown backup mode %q", s)
}

type State string

const (
	StateInit               State = "INIT"
	StateResolveImages      State = "RESOLVE_IMAGES"
	StatePrepDirs           State = "PREP_DIRS"
	StateFullExport         State = "FULL_EXPORT"
	StateBaselineCheck      State = "BASELINE_CHECK"
	StateFullExportBaseline State = "FULL_EXPORT_BASELINE"
	StateDiffExport         State = "DIFF_EXPORT"
	StateRollReference      State = "ROLL_REFERENCE"
	StateDone               State = "DONE"
	StateFailed             State = "FAILED"
)

// RunLabel is the snapshot label shared by every export of a run:
// the UTC date followed by the Unix seconds of the same instant.
func RunLabel(t time.Time) string {
	return t.UTC().Format("20060102") + "-" + strconv.FormatInt(t.Unix(), 10)
}

// Exporter performs bracketed exports. It is satisfied by *export.Engine.
type Exporter interface {
	ExportFull(ctx context.Context, image, label, dir string) (string, error)
	ExportDiff(ctx context.Context, image, label, fromLabel, dir string) (string, error)
}

// References maintains the per-image reference snapshot. It is satisfied by
// *reference.Tracker.
type References interface {
	HasReference(ctx context.Context, image string) (bool, error)
	Establish(ctx context.Context, image, runLabel, imageDir string) (string, error)
	RollForward(ctx context.Context, image string) error
}

// Checksummer records a digest of every artifact written to imageDir.
type Checksummer interface {
	Record(imageDir, artifact string) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Images     catalog.Lister
	Selector   []string
	Layout     *layout.Layout
	Exporter   Exporter
	References References
	// Checksums is optional.
	Checksums Checksummer
	// Log receives the monitoring events, tagged with logging.EventField.
	Log *logrus.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// SessionDeps wires the snapshot, export and reference components on top of
// a pool-bound session.
func SessionDeps(s *cephapi.Session, root string, selector []string, log *logrus.Logger) Deps {
	snaps := snapshot.NewManager(s, log)
	engine := export.NewEngine(snaps, s, log)
	return Deps{
		Images:     s,
		Selector:   selector,
		Layout:     layout.New(root, s.Pool(), log),
		Exporter:   engine,
		References: reference.NewTracker(snaps, engine, log),
		Log:        log,
	}
}

type Orchestrator struct {
	d Deps
}

func New(d Deps) *Orchestrator {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Orchestrator{d: d}
}

// ImageResult describes what a run did for one image.
type ImageResult struct {
	Image    string
	Strategy Mode
	// Baseline is set when a differential run had to export a full restore
	// base first.
	Baseline  bool
	Artifacts []string
}

// Report summarizes a run. Images holds the images completed before the run
// ended.
type Report struct {
	RunID       string
	RunLabel    string
	Mode        Mode
	State       State
	Images      []ImageResult
	FailedImage string
}

// ImageError is the failure that aborted a run.
type ImageError struct {
	Image string
	State State
	Err   error
}

func (e *ImageError) Error() string {
	if e.Image == "" {
		return fmt.Sprintf("%s: %v", e.State, e.Err)
	}
	return fmt.Sprintf("image %s: %s: %v", e.Image, e.State, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// Run backs up every selected image in catalog order and stops at the first
// failure. Artifacts of images completed earlier are left in place.
func (o *Orchestrator) Run(ctx context.Context, mode Mode) (*Report, error) {
	rep := &Report{
		RunID:    uuid.NewString(),
		RunLabel: RunLabel(o.d.Now()),
		Mode:     mode,
		State:    StateInit,
	}
	o.d.Log.WithField("run_id", rep.RunID).Infof("Starting %s run %s on pool %s", mode, rep.RunLabel, o.d.Layout.Pool)

	o.enter(rep, StateResolveImages, "")
	images, err := catalog.Resolve(ctx, o.d.Images, o.d.Selector)
	if err != nil {
		return rep, o.fail(rep, "", err)
	}

	for _, image := range images {
		if err := ctx.Err(); err != nil {
			return rep, o.fail(rep, image, err)
		}
		logging.Event(o.d.Log).Info(monitoring.FormatEvent(monitoring.StatusStart, string(mode), image))
		res, err := o.backupImage(ctx, rep, mode, image)
		if err != nil {
			return rep, o.fail(rep, image, err)
		}
		rep.Images = append(rep.Images, res)
		logging.Event(o.d.Log).Info(monitoring.FormatEvent(monitoring.StatusEnd, string(mode), image))
	}

	o.enter(rep, StateDone, "")
	o.d.Log.Infof("Run %s finished: %d image(s)", rep.RunLabel, len(rep.Images))
	return rep, nil
}

func (o *Orchestrator) backupImage(ctx context.Context, rep *Report, mode Mode, image string) (ImageResult, error) {
	res := ImageResult{Image: image, Strategy: mode}
	imageDir := o.d.Layout.ImageDir(image)

	o.enter(rep, StatePrepDirs, image)
	if mode == ModeFull {
		if err := o.d.Layout.EnsureImageDir(image); err != nil {
			return res, err
		}
		o.enter(rep, StateFullExport, image)
		path, err := o.d.Exporter.ExportFull(ctx, image, rep.RunLabel, imageDir)
		if err != nil {
			return res, err
		}
		return res, o.keep(&res, imageDir, path)
	}

	if err := o.d.Layout.EnsureDiffDir(image); err != nil {
		return res, err
	}
	o.enter(rep, StateBaselineCheck, image)
	ok, err := o.d.References.HasReference(ctx, image)
	if err != nil {
		return res, err
	}
	if !ok {
		o.enter(rep, StateFullExportBaseline, image)
		res.Baseline = true
		path, err := o.d.References.Establish(ctx, image, rep.RunLabel, imageDir)
		if path != "" {
			if kerr := o.keep(&res, imageDir, path); kerr != nil && err == nil {
				err = kerr
			}
		}
		if err != nil {
			return res, err
		}
	}

	o.enter(rep, StateDiffExport, image)
	path, err := o.d.Exporter.ExportDiff(ctx, image, rep.RunLabel, cephapi.ReferenceSnapshot, imageDir)
	if err != nil {
		return res, err
	}
	if err := o.keep(&res, imageDir, path); err != nil {
		return res, err
	}

	o.enter(rep, StateRollReference, image)
	return res, o.d.References.RollForward(ctx, image)
}

// keep records an artifact and its checksum.
func (o *Orchestrator) keep(res *ImageResult, imageDir, path string) error {
	res.Artifacts = append(res.Artifacts, path)
	if o.d.Checksums == nil {
		return nil
	}
	if err := o.d.Checksums.Record(imageDir, path); err != nil {
		return fmt.Errorf("record checksum of %s: %w", path, err)
	}
	return nil
}

func (o *Orchestrator) enter(rep *Report, s State, image string) {
	rep.State = s
	entry := o.d.Log.WithField("state", s)
	if image != "" {
		entry = entry.WithField("image", image)
	}
	entry.Debug("State transition")
}

func (o *Orchestrator) fail(rep *Report, image string, err error) error {
	ie := &ImageError{Image: image, State: rep.State, Err: err}
	rep.State = StateFailed
	rep.FailedImage = image
	o.d.Log.WithFields(logrus.Fields{"image": image, "state": ie.State}).WithError(err).
		Errorf("Run %s aborted", rep.RunLabel)
	return ie
}
