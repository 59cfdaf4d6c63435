package cephapi

import (
	"errors"
	"fmt"
)

// Error kinds reported by the storage engine bindings.
var (
	ErrConnection       = errors.New("cluster connection failed")
	ErrPoolNotFound     = errors.New("pool not found")
	ErrSnapshotExists   = errors.New("snapshot already exists")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSnapshotBusy     = errors.New("snapshot busy")
	ErrIO               = errors.New("storage I/O failure")
	ErrExportFailure    = errors.New("export failed")
	ErrSessionClosed    = errors.New("session closed")
)

// ClusterError wraps a connection or pool level failure.
type ClusterError struct {
	Op   string // connect|open-pool|close
	Pool string
	Err  error
}

func (e *ClusterError) Error() string {
	if e.Pool == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Pool, e.Err)
}

func (e *ClusterError) Unwrap() error { return e.Err }

// SnapshotError wraps a failure of a snapshot operation on one image.
type SnapshotError struct {
	Op       string // create|delete|list
	Image    string
	Snapshot string
	Err      error
}

func (e *SnapshotError) Error() string {
	if e.Snapshot == "" {
		return fmt.Sprintf("%s snapshots of %s: %v", e.Op, e.Image, e.Err)
	}
	return fmt.Sprintf("%s snapshot %s: %v", e.Op, SnapshotSpec(e.Image, e.Snapshot), e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// ExportError reports a failed export call together with the diagnostic text
// produced by the engine.
type ExportError struct {
	Op         string // export|export-diff
	Image      string
	Snapshot   string
	Diagnostic string
	Err        error
}

func (e *ExportError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, SnapshotSpec(e.Image, e.Snapshot))
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

// Is makes every ExportError match ErrExportFailure.
func (e *ExportError) Is(target error) bool { return target == ErrExportFailure }

func (e *ExportError) Unwrap() error { return e.Err }
