package incusapi

import (
	incuscli "github.com/lxc/incus/client"
)

// RealClient wraps the official Incus Go client.
type RealClient struct {
	c incuscli.InstanceServer
}

// ConnectLocal connects to the local Incus via the UNIX socket. A non-empty
// project scopes every request to it.
func ConnectLocal(project string) (*RealClient, error) {
	c, err := incuscli.ConnectIncusUnix("", nil)
	if err != nil {
		return nil, err
	}
	if project != "" {
		c = c.UseProject(project)
	}
	return &RealClient{c: c}, nil
}

func (r *RealClient) Server() (ServerInfo, error) {
	s, _, err := r.c.GetServer()
	if err != nil {
		return ServerInfo{}, err
	}
	return ServerInfo{ServerVersion: s.Environment.ServerVersion}, nil
}

func (r *RealClient) StoragePool(name string) (StoragePool, error) {
	p, _, err := r.c.GetStoragePool(name)
	if err != nil {
		return StoragePool{}, err
	}
	return StoragePool{Name: p.Name, Driver: p.Driver, Config: p.Config}, nil
}

func (r *RealClient) StoragePoolVolumes(pool string) ([]Volume, error) {
	vols, err := r.c.GetStoragePoolVolumes(pool)
	if err != nil {
		return nil, err
	}
	out := make([]Volume, 0, len(vols))
	for _, v := range vols {
		out = append(out, Volume{Name: v.Name, Type: v.Type, ContentType: v.ContentType})
	}
	return out, nil
}
