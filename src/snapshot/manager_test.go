package snapshot_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbd-backup/src/cephapi"
	"rbd-backup/src/snapshot"
)

func newManager(t *testing.T) (*cephapi.FakeCluster, *snapshot.Manager) {
	t.Helper()
	f := cephapi.NewFake()
	f.AddImage("rbd", "vm1")
	s, err := cephapi.Open(context.Background(), f, "rbd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	log, _ := test.NewNullLogger()
	return f, snapshot.NewManager(s, log)
}

func TestManager_CreateListDelete(t *testing.T) {
	_, m := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, "vm1", "20240101-1704067200"))
	require.NoError(t, m.Create(ctx, "vm1", "dummy"))

	snaps, err := m.List(ctx, "vm1")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "20240101-1704067200", snaps[0].Name)
	assert.Equal(t, "dummy", snaps[1].Name)

	require.NoError(t, m.Delete(ctx, "vm1", "20240101-1704067200"))
	snaps, err = m.List(ctx, "vm1")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
}

func TestManager_CreateTakenLabel(t *testing.T) {
	_, m := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, "vm1", "dummy"))
	err := m.Create(ctx, "vm1", "dummy")
	require.Error(t, err)
	assert.ErrorIs(t, err, cephapi.ErrSnapshotExists)

	var se *cephapi.SnapshotError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "create", se.Op)
	assert.Equal(t, "vm1@dummy", cephapi.SnapshotSpec(se.Image, se.Snapshot))
}

func TestManager_DeleteErrors(t *testing.T) {
	f, m := newManager(t)
	ctx := context.Background()

	assert.ErrorIs(t, m.Delete(ctx, "vm1", "missing"), cephapi.ErrSnapshotNotFound)

	require.NoError(t, m.Create(ctx, "vm1", "s1"))
	f.Fail["snap-rm rbd/vm1@s1"] = cephapi.ErrSnapshotBusy
	assert.ErrorIs(t, m.Delete(ctx, "vm1", "s1"), cephapi.ErrSnapshotBusy)
}

func TestManager_HasReference(t *testing.T) {
	_, m := newManager(t)
	ctx := context.Background()

	ok, err := m.HasReference(ctx, "vm1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Create(ctx, "vm1", "20240101-1704067200"))
	ok, err = m.HasReference(ctx, "vm1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Create(ctx, "vm1", cephapi.ReferenceSnapshot))
	ok, err = m.HasReference(ctx, "vm1")
	require.NoError(t, err)
	assert.True(t, ok)
}
