package incusapi

import (
	"context"
	"fmt"
	"strings"
)

// PoolImages lists the RBD images behind the volumes of an Incus storage
// pool. It satisfies catalog.Lister.
type PoolImages struct {
	Client Client
	// Pool is the Incus storage pool name.
	Pool string
	// CephPool is the RBD pool being backed up; the Incus pool must map to it.
	CephPool string
	// Project prefixes custom volume and non-default instance names.
	Project string
}

// ListImages returns the image names in the order the API lists volumes.
// Image volumes and snapshots are skipped.
func (p PoolImages) ListImages(_ context.Context) ([]string, error) {
	pool, err := p.Client.StoragePool(p.Pool)
	if err != nil {
		return nil, err
	}
	if pool.Driver != "ceph" {
		return nil, fmt.Errorf("%s (%s): %w", p.Pool, pool.Driver, ErrNotCeph)
	}
	osdPool := pool.Config["ceph.osd.pool_name"]
	if osdPool == "" {
		osdPool = pool.Name
	}
	if osdPool != p.CephPool {
		return nil, fmt.Errorf("%s maps to %s, not %s: %w", p.Pool, osdPool, p.CephPool, ErrPoolMismatch)
	}

	vols, err := p.Client.StoragePoolVolumes(p.Pool)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, v := range vols {
		out = append(out, RBDImageNames(v, p.Project)...)
	}
	return out, nil
}

// RBDImageNames returns the RBD images the ceph driver stores v in, or nil
// for volumes that are not backed up. A virtual machine has two: the small
// filesystem volume holding its config and the .block disk.
func RBDImageNames(v Volume, project string) []string {
	if strings.Contains(v.Name, "/") {
		return nil
	}
	if project == "" {
		project = "default"
	}
	var name string
	switch v.Type {
	case "container", "virtual-machine":
		name = v.Type + "_" + v.Name
		if project != "default" {
			name = v.Type + "_" + project + "_" + v.Name
		}
	case "custom":
		name = "custom_" + project + "_" + v.Name
	default:
		return nil
	}
	switch {
	case v.Type == "virtual-machine":
		return []string{name, name + ".block"}
	case v.ContentType == "block":
		name += ".block"
	case v.ContentType == "iso":
		name += ".iso"
	}
	return []string{name}
}
