package backend

import "time"

// Entry is one export artifact found in the backup tree.
type Entry struct {
	Kind     string    `json:"kind"` // full|diff
	Pool     string    `json:"pool"`
	Image    string    `json:"image"`
	Label    string    `json:"label"`
	Size     uint64    `json:"size"`
	Modified time.Time `json:"modified"`
	Path     string    `json:"path"`
}

// Kind constants used for filtering.
const (
	KindAll  = "all"
	KindFull = "full"
	KindDiff = "diff"
)

// StorageBackend lists artifacts of one pool.
type StorageBackend interface {
	List(pool, kind string) ([]Entry, error)
}
