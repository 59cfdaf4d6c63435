package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbd-backup/src/catalog"
	"rbd-backup/src/cephapi"
)

func openFake(t *testing.T, images ...string) (*cephapi.FakeCluster, *cephapi.Session) {
	t.Helper()
	f := cephapi.NewFake()
	for _, img := range images {
		f.AddImage("rbd", img)
	}
	s, err := cephapi.Open(context.Background(), f, "rbd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return f, s
}

func TestResolve_WildcardKeepsNativeOrderAndIsStable(t *testing.T) {
	_, s := openFake(t, "vm3", "vm1", "vm2")

	first, err := catalog.Resolve(context.Background(), s, []string{"*"})
	require.NoError(t, err)
	second, err := catalog.Resolve(context.Background(), s, []string{"*"})
	require.NoError(t, err)

	assert.Equal(t, []string{"vm3", "vm1", "vm2"}, first)
	assert.Equal(t, first, second)
}

func TestResolve_ExplicitListVerbatim(t *testing.T) {
	f, s := openFake(t, "vm1")

	got, err := catalog.Resolve(context.Background(), s, []string{"vm9", "vm1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"vm9", "vm1"}, got)
	assert.Empty(t, f.CallsWithPrefix("ls"), "explicit selectors must not enumerate the pool")
}

func TestIsWildcard(t *testing.T) {
	assert.True(t, catalog.IsWildcard([]string{"*"}))
	assert.False(t, catalog.IsWildcard([]string{"*", "vm1"}))
	assert.False(t, catalog.IsWildcard(nil))
}
