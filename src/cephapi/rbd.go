package cephapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

type runCommandFunc func(ctx context.Context, exe string, args []string) (string, string, error)

var runCommand runCommandFunc = execCommand

// RBD binds Engine to the rbd and ceph command line tools. Every invocation
// carries the connection parameters, so there is no process-wide handle to
// release; Shutdown only marks the binding unusable.
type RBD struct {
	Params   ConnParams
	RBDPath  string
	CephPath string
	down     bool
}

// NewRBD returns a CLI binding that resolves rbd and ceph from PATH.
func NewRBD(p ConnParams) *RBD {
	return &RBD{Params: p, RBDPath: "rbd", CephPath: "ceph"}
}

func (r *RBD) connArgs() []string {
	var args []string
	if r.Params.ConfFile != "" {
		args = append(args, "--conf", r.Params.ConfFile)
	}
	if r.Params.Keyring != "" {
		args = append(args, "--keyring", r.Params.Keyring)
	}
	if r.Params.Client != "" {
		args = append(args, "--id", r.Params.Client)
	}
	return args
}

func (r *RBD) rbd(ctx context.Context, args ...string) (string, string, error) {
	if r.down {
		return "", "", ErrSessionClosed
	}
	return runCommand(ctx, r.RBDPath, append(r.connArgs(), args...))
}

// Connect checks that the cluster is reachable and that the credentials are
// accepted by asking the monitors for the cluster fsid.
func (r *RBD) Connect(ctx context.Context) (ClusterInfo, error) {
	args := append(r.connArgs(), "fsid", "--format", "json")
	stdout, stderr, err := runCommand(ctx, r.CephPath, args)
	if err != nil {
		return ClusterInfo{}, fmt.Errorf("%w: %s", ErrConnection, diagnostic(stderr, err))
	}
	if !gjson.Valid(stdout) {
		return ClusterInfo{}, fmt.Errorf("%w: unexpected fsid output %q", ErrConnection, strings.TrimSpace(stdout))
	}
	return ClusterInfo{FSID: gjson.Get(stdout, "fsid").String()}, nil
}

func (r *RBD) PoolExists(ctx context.Context, pool string) (bool, error) {
	_, stderr, err := r.rbd(ctx, "pool", "stats", "--pool", pool, "--format", "json")
	if err == nil {
		return true, nil
	}
	if errnoOf(stderr) == errnoNotFound {
		return false, nil
	}
	return false, classify(stderr, err, ErrIO, ErrIO)
}

func (r *RBD) Shutdown() error {
	r.down = true
	return nil
}

func (r *RBD) ListImages(ctx context.Context, pool string) ([]string, error) {
	stdout, stderr, err := r.rbd(ctx, "ls", "--pool", pool, "--format", "json")
	if err != nil {
		return nil, classify(stderr, err, ErrPoolNotFound, ErrIO)
	}
	if !gjson.Valid(stdout) {
		return nil, fmt.Errorf("%w: rbd ls: invalid json output", ErrIO)
	}
	var out []string
	for _, v := range gjson.Parse(stdout).Array() {
		out = append(out, v.String())
	}
	return out, nil
}

func (r *RBD) CreateSnapshot(ctx context.Context, pool, image, snap string) error {
	_, stderr, err := r.rbd(ctx, "snap", "create", "--pool", pool, "--image", image, "--snap", snap)
	if err != nil {
		return classify(stderr, err, ErrIO, ErrIO)
	}
	return nil
}

func (r *RBD) DeleteSnapshot(ctx context.Context, pool, image, snap string) error {
	_, stderr, err := r.rbd(ctx, "snap", "rm", "--pool", pool, "--image", image, "--snap", snap)
	if err != nil {
		return classify(stderr, err, ErrSnapshotNotFound, ErrIO)
	}
	return nil
}

func (r *RBD) ListSnapshots(ctx context.Context, pool, image string) ([]Snapshot, error) {
	stdout, stderr, err := r.rbd(ctx, "snap", "ls", "--pool", pool, "--image", image, "--format", "json")
	if err != nil {
		return nil, classify(stderr, err, ErrIO, ErrIO)
	}
	if !gjson.Valid(stdout) {
		return nil, fmt.Errorf("%w: rbd snap ls: invalid json output", ErrIO)
	}
	var out []Snapshot
	gjson.Parse(stdout).ForEach(func(_, v gjson.Result) bool {
		out = append(out, Snapshot{
			ID:   v.Get("id").Uint(),
			Name: v.Get("name").String(),
			Size: v.Get("size").Uint(),
		})
		return true
	})
	return out, nil
}

func (r *RBD) ExportFull(ctx context.Context, pool, image, snap, dest string) error {
	_, stderr, err := r.rbd(ctx, "export", "--pool", pool, "--image", image, "--snap", snap, "--path", dest)
	if err != nil {
		return &ExportError{Op: "export", Image: image, Snapshot: snap, Diagnostic: strings.TrimSpace(stderr), Err: err}
	}
	return nil
}

func (r *RBD) ExportDiff(ctx context.Context, pool, image, fromSnap, snap, dest string) error {
	_, stderr, err := r.rbd(ctx, "export-diff", "--pool", pool, "--image", image, "--from-snap", fromSnap, "--snap", snap, "--path", dest)
	if err != nil {
		return &ExportError{Op: "export-diff", Image: image, Snapshot: snap, Diagnostic: strings.TrimSpace(stderr), Err: err}
	}
	return nil
}

const (
	errnoNotFound = 2
	errnoBusy     = 16
	errnoExists   = 17
)

// rbd prints failures as "rbd: <what>: (<errno>) <strerror>".
var errnoRegexp = regexp.MustCompile(`\((\d+)\) `)

func errnoOf(stderr string) int {
	m := errnoRegexp.FindStringSubmatch(stderr)
	if len(m) != 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// classify maps the errno printed by rbd onto our error kinds. ENOENT means
// different things per command, so the caller picks its kind.
func classify(stderr string, err error, notFound, fallback error) error {
	if errors.Is(err, ErrSessionClosed) {
		return err
	}
	kind := fallback
	switch errnoOf(stderr) {
	case errnoExists:
		kind = ErrSnapshotExists
	case errnoBusy:
		kind = ErrSnapshotBusy
	case errnoNotFound:
		kind = notFound
	}
	return fmt.Errorf("%w: %s", kind, diagnostic(stderr, err))
}

func diagnostic(stderr string, err error) string {
	if s := strings.TrimSpace(stderr); s != "" {
		return s
	}
	return err.Error()
}

func execCommand(ctx context.Context, exe string, args []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, exe, args...)
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	err := cmd.Run()
	return stdoutBuf.String(), stderrBuf.String(), err
}

// SetRunCommandForTest allows tests to stub out the rbd/ceph subprocesses.
func SetRunCommandForTest(fn func(ctx context.Context, exe string, args []string) (string, string, error)) func() {
	prev := runCommand
	runCommand = fn
	return func() { runCommand = prev }
}
