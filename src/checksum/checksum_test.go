package checksum_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"

	"rbd-backup/src/checksum"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSum(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.img")
	write(t, p, "hello")
	got, err := checksum.Sum(p, nil)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%x", xxh3.Hash128([]byte("hello")).Bytes()), got)
}

func TestRecordAndVerify(t *testing.T) {
	pool := t.TempDir()
	img := filepath.Join(pool, "vm1")
	full := filepath.Join(img, "vm1_20240101-1.img")
	diff := filepath.Join(img, "diffs", "diff_vm1_20240102-2.img")
	write(t, full, "full")
	write(t, diff, "diff")

	rec := checksum.Recorder{}
	require.NoError(t, rec.Record(img, full))
	require.NoError(t, rec.Record(img, diff))

	list, err := os.ReadFile(filepath.Join(img, checksum.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(list), "  diffs/diff_vm1_20240102-2.img\n")

	res, err := checksum.VerifyPool(pool)
	require.NoError(t, err)
	assert.Equal(t, []checksum.Result{
		{Image: "vm1", File: "vm1_20240101-1.img", Status: checksum.StatusOK},
		{Image: "vm1", File: "diffs/diff_vm1_20240102-2.img", Status: checksum.StatusOK},
	}, res)

	write(t, full, "tampered")
	require.NoError(t, os.Remove(diff))
	res, err = checksum.VerifyImage(img)
	require.NoError(t, err)
	assert.Equal(t, checksum.StatusMismatch, res[0].Status)
	assert.Equal(t, checksum.StatusMissing, res[1].Status)
}

func TestRecord_OutsideImageDir(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "other.img")
	write(t, other, "x")
	assert.Error(t, checksum.Recorder{}.Record(filepath.Join(dir, "vm1"), other))
}

func TestVerifyPool_SkipsImagesWithoutList(t *testing.T) {
	pool := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(pool, "vm2"), 0o755))
	res, err := checksum.VerifyPool(pool)
	require.NoError(t, err)
	assert.Empty(t, res)
}
