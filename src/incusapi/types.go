// Package incusapi reads the storage volumes of an Incus Ceph pool so the
// RBD images behind them can be selected for backup.
package incusapi

import "errors"

// ServerInfo exposes key server metadata we care about.
type ServerInfo struct {
	ServerVersion string
}

// StoragePool is the subset of an Incus storage pool we read.
type StoragePool struct {
	Name   string
	Driver string
	Config map[string]string
}

// Volume is one storage volume of a pool.
type Volume struct {
	Name        string
	Type        string // container|virtual-machine|custom|image
	ContentType string // filesystem|block|iso
}

// Client is a narrow interface over the Incus API used by the catalog.
type Client interface {
	Server() (ServerInfo, error)
	StoragePool(name string) (StoragePool, error)
	StoragePoolVolumes(pool string) ([]Volume, error)
}

var (
	ErrNotCeph      = errors.New("storage pool is not backed by ceph")
	ErrPoolMismatch = errors.New("storage pool uses a different ceph pool")
)

type NotFoundError struct{ Resource, Name string }

func (e *NotFoundError) Error() string { return e.Resource + " not found: " + e.Name }
