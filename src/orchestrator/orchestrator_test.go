package orchestrator_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbd-backup/src/cephapi"
	"rbd-backup/src/checksum"
	"rbd-backup/src/layout"
	"rbd-backup/src/logging"
	"rbd-backup/src/monitoring"
	"rbd-backup/src/orchestrator"
)

const label = "20240101-1704067200"

var now = func() time.Time { return time.Unix(1704067200, 0) }

type fixture struct {
	fake *cephapi.FakeCluster
	root string
	hook *test.Hook
	log  *logrus.Logger
	sess *cephapi.Session
}

func newFixture(t *testing.T, images ...string) *fixture {
	t.Helper()
	f := cephapi.NewFake()
	for _, img := range images {
		f.AddImage("rbd", img)
	}
	s, err := cephapi.Open(context.Background(), f, "rbd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return &fixture{fake: f, root: t.TempDir(), hook: hook, log: log, sess: s}
}

func (fx *fixture) orchestrator(selector ...string) *orchestrator.Orchestrator {
	d := orchestrator.SessionDeps(fx.sess, fx.root, selector, fx.log)
	d.Now = now
	return orchestrator.New(d)
}

func (fx *fixture) messages() []string {
	var out []string
	for _, e := range fx.hook.AllEntries() {
		out = append(out, e.Message)
	}
	return out
}

func TestRunLabel(t *testing.T) {
	assert.Equal(t, label, orchestrator.RunLabel(now()))
	loc := time.FixedZone("UTC+10", 10*3600)
	assert.Equal(t, "20231231-1704060000", orchestrator.RunLabel(time.Date(2024, 1, 1, 8, 0, 0, 0, loc)))
}

func TestParseMode(t *testing.T) {
	m, err := orchestrator.ParseMode("diff")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.ModeDiff, m)
	_, err = orchestrator.ParseMode("incremental")
	assert.Error(t, err)
}

func TestRun_Full(t *testing.T) {
	fx := newFixture(t, "vm1", "vm2")

	rep, err := fx.orchestrator("*").Run(context.Background(), orchestrator.ModeFull)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StateDone, rep.State)
	assert.Equal(t, label, rep.RunLabel)
	assert.NotEmpty(t, rep.RunID)

	want := filepath.Join(fx.root, "rbd", "vm1", "vm1_"+label+".img")
	require.Len(t, rep.Images, 2)
	assert.Equal(t, []string{want}, rep.Images[0].Artifacts)
	assert.FileExists(t, want)
	assert.NoDirExists(t, filepath.Join(fx.root, "rbd", "vm1", layout.DiffsDirName))

	assert.Equal(t, []string{
		"ls rbd",
		"snap-create rbd/vm1@" + label, "export rbd/vm1@" + label, "snap-rm rbd/vm1@" + label,
		"snap-create rbd/vm2@" + label, "export rbd/vm2@" + label, "snap-rm rbd/vm2@" + label,
	}, fx.fake.Calls)
	assert.Empty(t, fx.fake.CallsWithPrefix("export-diff"))
}

func TestRun_DiffWithoutReference(t *testing.T) {
	fx := newFixture(t, "vm1")

	rep, err := fx.orchestrator("vm1").Run(context.Background(), orchestrator.ModeDiff)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"snap-ls rbd/vm1",
		"snap-create rbd/vm1@" + label,
		"export rbd/vm1@" + label,
		"snap-rm rbd/vm1@" + label,
		"snap-create rbd/vm1@dummy",
		"snap-create rbd/vm1@" + label,
		"export-diff rbd/vm1@" + label,
		"snap-rm rbd/vm1@" + label,
		"snap-rm rbd/vm1@dummy",
		"snap-create rbd/vm1@dummy",
	}, fx.fake.Calls)

	res := rep.Images[0]
	assert.True(t, res.Baseline)
	assert.Equal(t, []string{
		filepath.Join(fx.root, "rbd", "vm1", "vm1_"+label+".img"),
		filepath.Join(fx.root, "rbd", "vm1", "diffs", "diff_vm1_"+label+".img"),
	}, res.Artifacts)

	diff, err := os.ReadFile(res.Artifacts[1])
	require.NoError(t, err)
	assert.Equal(t, "diff dummy..vm1@"+label+"\n", string(diff))

	require.Len(t, fx.fake.Snaps["rbd/vm1"], 1)
	assert.Equal(t, "dummy", fx.fake.Snaps["rbd/vm1"][0].Name)
}

func TestRun_DiffWithReference(t *testing.T) {
	fx := newFixture(t, "vm1")
	require.NoError(t, fx.fake.CreateSnapshot(context.Background(), "rbd", "vm1", "dummy"))
	fx.fake.Calls = nil

	rep, err := fx.orchestrator("vm1").Run(context.Background(), orchestrator.ModeDiff)
	require.NoError(t, err)
	assert.False(t, rep.Images[0].Baseline)

	assert.Empty(t, fx.fake.CallsWithPrefix("export"))
	assert.Len(t, fx.fake.CallsWithPrefix("export-diff"), 1)
	assert.Equal(t, []string{"snap-rm rbd/vm1@" + label, "snap-rm rbd/vm1@dummy"}, fx.fake.CallsWithPrefix("snap-rm"))
	assert.Equal(t, []string{"snap-create rbd/vm1@" + label, "snap-create rbd/vm1@dummy"}, fx.fake.CallsWithPrefix("snap-create"))
	assert.NoFileExists(t, filepath.Join(fx.root, "rbd", "vm1", "vm1_"+label+".img"))
}

func TestRun_SnapshotCreateFailureAbortsRun(t *testing.T) {
	fx := newFixture(t, "vm1", "vm2", "vm3")
	fx.fake.Fail["snap-create rbd/vm2@"+label] = cephapi.ErrSnapshotExists

	rep, err := fx.orchestrator("*").Run(context.Background(), orchestrator.ModeFull)
	require.Error(t, err)
	assert.ErrorIs(t, err, cephapi.ErrSnapshotExists)

	var ie *orchestrator.ImageError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "vm2", ie.Image)
	assert.Equal(t, orchestrator.StateFullExport, ie.State)

	assert.Equal(t, orchestrator.StateFailed, rep.State)
	assert.Equal(t, "vm2", rep.FailedImage)
	require.Len(t, rep.Images, 1)
	assert.FileExists(t, rep.Images[0].Artifacts[0], "earlier artifacts stay in place")

	assert.Equal(t, "snap-create rbd/vm2@"+label, fx.fake.Calls[len(fx.fake.Calls)-1],
		"no export, no delete and no later image after a failed create")
	for _, c := range fx.fake.Calls {
		assert.NotContains(t, c, "vm3")
	}

	last := fx.hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, last.Level)
	assert.Equal(t, "vm2", last.Data["image"])
	assert.Contains(t, fx.messages(), "START - full - BACKUP - vm2")
	assert.NotContains(t, fx.messages(), "END - full - BACKUP - vm2")
}

func TestRun_NonexistentExplicitImage(t *testing.T) {
	fx := newFixture(t, "vm1")

	_, err := fx.orchestrator("ghost").Run(context.Background(), orchestrator.ModeFull)
	assert.ErrorIs(t, err, cephapi.ErrIO)
	assert.Equal(t, []string{"snap-create rbd/ghost@" + label}, fx.fake.Calls)
}

func TestRun_ExportFailureStillCleansUp(t *testing.T) {
	fx := newFixture(t, "vm1")
	require.NoError(t, fx.fake.CreateSnapshot(context.Background(), "rbd", "vm1", "dummy"))
	fx.fake.Calls = nil
	fx.fake.Fail["export-diff rbd/vm1@"+label] = &cephapi.ExportError{Op: "export-diff", Image: "vm1", Snapshot: label, Diagnostic: "rbd: export-diff error"}

	_, err := fx.orchestrator("vm1").Run(context.Background(), orchestrator.ModeDiff)
	require.ErrorIs(t, err, cephapi.ErrExportFailure)
	assert.Contains(t, err.Error(), "rbd: export-diff error")
	assert.Equal(t, "snap-rm rbd/vm1@"+label, fx.fake.Calls[len(fx.fake.Calls)-1])
	assert.Equal(t, "dummy", fx.fake.Snaps["rbd/vm1"][0].Name, "reference not rolled on failure")
}

func TestRun_DirectoryCreationFailure(t *testing.T) {
	fx := newFixture(t, "vm1")
	require.NoError(t, os.WriteFile(filepath.Join(fx.root, "rbd"), nil, 0o644))

	_, err := fx.orchestrator("vm1").Run(context.Background(), orchestrator.ModeFull)
	assert.ErrorIs(t, err, layout.ErrDirectoryCreation)
	var ie *orchestrator.ImageError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, orchestrator.StatePrepDirs, ie.State)
	assert.Empty(t, fx.fake.Calls)
}

func TestRun_ResolveFailure(t *testing.T) {
	fx := newFixture(t, "vm1")
	fx.fake.Fail["ls rbd"] = cephapi.ErrIO

	rep, err := fx.orchestrator("*").Run(context.Background(), orchestrator.ModeFull)
	assert.ErrorIs(t, err, cephapi.ErrIO)
	assert.Equal(t, orchestrator.StateFailed, rep.State)
	assert.Empty(t, rep.FailedImage)
}

func TestRun_CancelledContextStopsBeforeNextImage(t *testing.T) {
	fx := newFixture(t, "vm1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.orchestrator("vm1").Run(ctx, orchestrator.ModeFull)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fx.fake.Calls)
}

func TestRun_RecordsChecksums(t *testing.T) {
	fx := newFixture(t, "vm1")
	d := orchestrator.SessionDeps(fx.sess, fx.root, []string{"vm1"}, fx.log)
	d.Now = now
	d.Checksums = checksum.Recorder{}

	_, err := orchestrator.New(d).Run(context.Background(), orchestrator.ModeDiff)
	require.NoError(t, err)

	res, err := checksum.VerifyImage(filepath.Join(fx.root, "rbd", "vm1"))
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "vm1_"+label+".img", res[0].File)
	assert.Equal(t, "diffs/diff_vm1_"+label+".img", res[1].File)
	for _, r := range res {
		assert.Equal(t, checksum.StatusOK, r.Status)
	}
}

func TestRun_EventsFeedTheMonitoringParser(t *testing.T) {
	fx := newFixture(t, "vm1", "vm2")
	fx.fake.Fail["snap-create rbd/vm2@"+label] = errors.New("boom")

	var buf bytes.Buffer
	log := logrus.New()
	log.SetFormatter(logging.LineFormatter{})
	log.SetLevel(logrus.DebugLevel)
	log.SetOutput(&buf)

	d := orchestrator.SessionDeps(fx.sess, fx.root, []string{"*"}, log)
	d.Now = now
	_, err := orchestrator.New(d).Run(context.Background(), orchestrator.ModeFull)
	require.Error(t, err)

	res, err := monitoring.Parse(&buf)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "vm1", res[0].Image)
	assert.Equal(t, 1, res[0].Status)
	assert.Equal(t, monitoring.Result{Image: "vm2"}, res[1])
}

func TestRun_MonitoringLogWithMarkerInPaths(t *testing.T) {
	fx := newFixture(t, "vm-BACKUP", "vm1")
	root := filepath.Join(t.TempDir(), "BACKUP")
	monLog := filepath.Join(t.TempDir(), "monitoring.log")
	log, closeLog, err := logging.New(logging.Options{MonitoringLog: monLog})
	require.NoError(t, err)

	d := orchestrator.SessionDeps(fx.sess, root, []string{"*"}, log)
	d.Now = now
	_, err = orchestrator.New(d).Run(context.Background(), orchestrator.ModeDiff)
	require.NoError(t, err)
	require.NoError(t, closeLog())

	f, err := os.Open(monLog)
	require.NoError(t, err)
	defer f.Close()
	res, err := monitoring.Parse(f)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "vm-BACKUP", res[0].Image)
	assert.Equal(t, 1, res[0].Status)
	assert.Equal(t, "vm1", res[1].Image)
	assert.Equal(t, 1, res[1].Status)
}

func TestPlan(t *testing.T) {
	fx := newFixture(t, "vm1", "vm2")
	require.NoError(t, fx.fake.CreateSnapshot(context.Background(), "rbd", "vm2", "dummy"))
	fx.fake.Calls = nil

	p, err := fx.orchestrator("*").Plan(context.Background(), orchestrator.ModeDiff)
	require.NoError(t, err)
	assert.Equal(t, label, p.RunLabel)
	require.Len(t, p.Images, 2)
	assert.True(t, p.Images[0].Baseline)
	assert.Len(t, p.Images[0].Artifacts, 2)
	assert.False(t, p.Images[1].Baseline)
	assert.Equal(t, []string{filepath.Join(fx.root, "rbd", "vm2", "diffs", "diff_vm2_"+label+".img")}, p.Images[1].Artifacts)

	assert.Equal(t, []string{"ls rbd", "snap-ls rbd/vm1", "snap-ls rbd/vm2"}, fx.fake.Calls, "planning is read-only")
	assert.NoDirExists(t, filepath.Join(fx.root, "rbd"))
}
