package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// DiffsDirName is the per-image subdirectory holding differential exports.
const DiffsDirName = "diffs"

// ErrDirectoryCreation is matched by every DirectoryCreationError.
var ErrDirectoryCreation = errors.New("directory creation failed")

// DirectoryCreationError reports the directory that could not be created.
type DirectoryCreationError struct {
	Path string
	Err  error
}

func (e *DirectoryCreationError) Error() string {
	return fmt.Sprintf("create directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryCreationError) Is(target error) bool { return target == ErrDirectoryCreation }

func (e *DirectoryCreationError) Unwrap() error { return e.Err }

// Layout computes the backup tree root/<pool>/<image>/diffs for one pool.
type Layout struct {
	Root string
	Pool string
	Log  logrus.FieldLogger
}

// New returns a Layout for pool under root.
func New(root, pool string, log logrus.FieldLogger) *Layout {
	return &Layout{Root: root, Pool: pool, Log: log}
}

func (l *Layout) PoolDir() string { return filepath.Join(l.Root, l.Pool) }

func (l *Layout) ImageDir(image string) string { return filepath.Join(l.PoolDir(), image) }

func (l *Layout) DiffDir(image string) string {
	return filepath.Join(l.ImageDir(image), DiffsDirName)
}

// FullArtifactName is <image>_<label>.img.
func FullArtifactName(image, label string) string {
	return image + "_" + label + ".img"
}

// DiffArtifactName is diff_<image>_<label>.img.
func DiffArtifactName(image, label string) string {
	return "diff_" + image + "_" + label + ".img"
}

// FullArtifactPath is root/<pool>/<image>/<image>_<label>.img.
func (l *Layout) FullArtifactPath(image, label string) string {
	return filepath.Join(l.ImageDir(image), FullArtifactName(image, label))
}

// DiffArtifactPath is root/<pool>/<image>/diffs/diff_<image>_<label>.img.
func (l *Layout) DiffArtifactPath(image, label string) string {
	return filepath.Join(l.DiffDir(image), DiffArtifactName(image, label))
}

// EnsureImageDir creates the pool and image directories, in that order, when
// they are missing.
func (l *Layout) EnsureImageDir(image string) error {
	if err := l.ensure("Pool", l.PoolDir()); err != nil {
		return err
	}
	return l.ensure("Image", l.ImageDir(image))
}

// EnsureDiffDir additionally creates the image's diffs directory.
func (l *Layout) EnsureDiffDir(image string) error {
	if err := l.EnsureImageDir(image); err != nil {
		return err
	}
	return l.ensure("Diff", l.DiffDir(image))
}

func (l *Layout) ensure(kind, dir string) error {
	fi, err := os.Stat(dir)
	switch {
	case err == nil && fi.IsDir():
		return nil
	case err == nil:
		return &DirectoryCreationError{Path: dir, Err: errors.New("exists and is not a directory")}
	case !errors.Is(err, os.ErrNotExist):
		return &DirectoryCreationError{Path: dir, Err: err}
	}
	if l.Log != nil {
		l.Log.Infof("%s [%s] directory does not exist. It will be created", kind, dir)
	}
	// Parents are created by the previous ensure call; Mkdir keeps the order explicit.
	if err := os.Mkdir(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return &DirectoryCreationError{Path: dir, Err: err}
	}
	return nil
}
