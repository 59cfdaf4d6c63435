package cephapi_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbd-backup/src/cephapi"
)

func TestOpen_ConnectionFailure(t *testing.T) {
	f := cephapi.NewFake()
	f.ConnectErr = errors.New("timed out")

	_, err := cephapi.Open(context.Background(), f, "rbd")
	require.Error(t, err)
	assert.ErrorIs(t, err, cephapi.ErrConnection)
	var ce *cephapi.ClusterError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "connect", ce.Op)
}

func TestOpen_PoolNotFoundShutsDown(t *testing.T) {
	f := cephapi.NewFake()

	_, err := cephapi.Open(context.Background(), f, "missing")
	assert.ErrorIs(t, err, cephapi.ErrPoolNotFound)
	assert.Equal(t, 1, f.Shutdowns)
}

func TestSession_CloseExactlyOnce(t *testing.T) {
	f := cephapi.NewFake()
	f.AddImage("rbd", "vm1")

	s, err := cephapi.Open(context.Background(), f, "rbd")
	require.NoError(t, err)
	assert.Equal(t, "rbd", s.Pool())
	assert.Equal(t, f.FSID, s.Info().FSID)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), cephapi.ErrSessionClosed)
	assert.Equal(t, 1, f.Shutdowns)

	_, err = s.ListImages(context.Background())
	assert.ErrorIs(t, err, cephapi.ErrSessionClosed)
}

func TestSession_BindsPool(t *testing.T) {
	f := cephapi.NewFake()
	f.AddImage("rbd", "vm1")

	s, err := cephapi.Open(context.Background(), f, "rbd")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateSnapshot(context.Background(), "vm1", "dummy"))
	snaps, err := s.ListSnapshots(context.Background(), "vm1")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "dummy", snaps[0].Name)
	assert.Equal(t, []string{"snap-create rbd/vm1@dummy", "snap-ls rbd/vm1"}, f.Calls)
}
