package incusapi

// FakeClient is an in-memory implementation for unit tests.
type FakeClient struct {
	ServerVersionStr string
	Pools            map[string]StoragePool
	// Volumes maps pool name -> volumes in API order.
	Volumes map[string][]Volume
}

func NewFake() *FakeClient {
	return &FakeClient{Pools: map[string]StoragePool{}, Volumes: map[string][]Volume{}}
}

// AddCephPool registers an Incus pool backed by the given ceph pool.
func (f *FakeClient) AddCephPool(name, cephPool string) {
	f.Pools[name] = StoragePool{Name: name, Driver: "ceph", Config: map[string]string{"ceph.osd.pool_name": cephPool}}
}

func (f *FakeClient) Server() (ServerInfo, error) {
	return ServerInfo{ServerVersion: f.ServerVersionStr}, nil
}

func (f *FakeClient) StoragePool(name string) (StoragePool, error) {
	p, ok := f.Pools[name]
	if !ok {
		return StoragePool{}, &NotFoundError{Resource: "storage pool", Name: name}
	}
	return p, nil
}

func (f *FakeClient) StoragePoolVolumes(pool string) ([]Volume, error) {
	if _, ok := f.Pools[pool]; !ok {
		return nil, &NotFoundError{Resource: "storage pool", Name: pool}
	}
	return append([]Volume(nil), f.Volumes[pool]...), nil
}
