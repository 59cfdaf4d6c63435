package orchestrator

import (
	"context"

	"rbd-backup/src/catalog"
)

// PlannedImage is what Run would do for one image.
type PlannedImage struct {
	Image    string
	Baseline bool
	// Artifacts are the files Run would write, in order.
	Artifacts []string
	// RollReference is set for differential runs.
	RollReference bool
}

// Plan is the dry-run counterpart of a Report.
type Plan struct {
	RunLabel string
	Mode     Mode
	Images   []PlannedImage
}

// Plan resolves the images and inspects their reference snapshots without
// creating directories or snapshots.
func (o *Orchestrator) Plan(ctx context.Context, mode Mode) (*Plan, error) {
	p := &Plan{RunLabel: RunLabel(o.d.Now()), Mode: mode}
	images, err := catalog.Resolve(ctx, o.d.Images, o.d.Selector)
	if err != nil {
		return nil, &ImageError{State: StateResolveImages, Err: err}
	}
	l := o.d.Layout
	for _, image := range images {
		pi := PlannedImage{Image: image}
		if mode == ModeFull {
			pi.Artifacts = []string{l.FullArtifactPath(image, p.RunLabel)}
			p.Images = append(p.Images, pi)
			continue
		}
		ok, err := o.d.References.HasReference(ctx, image)
		if err != nil {
			return nil, &ImageError{Image: image, State: StateBaselineCheck, Err: err}
		}
		if !ok {
			pi.Baseline = true
			pi.Artifacts = append(pi.Artifacts, l.FullArtifactPath(image, p.RunLabel))
		}
		pi.Artifacts = append(pi.Artifacts, l.DiffArtifactPath(image, p.RunLabel))
		pi.RollReference = true
		p.Images = append(p.Images, pi)
	}
	return p, nil
}
