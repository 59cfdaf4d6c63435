package cephapi

import (
	"context"
	"errors"
)

// Session owns the cluster connection and the pool it is bound to for the
// lifetime of one run. It is not safe for concurrent use.
type Session struct {
	engine Engine
	pool   string
	info   ClusterInfo
	closed bool
}

// Open connects to the cluster and binds the session to pool. The connection
// is shut down again when the pool cannot be opened.
func Open(ctx context.Context, engine Engine, pool string) (*Session, error) {
	info, err := engine.Connect(ctx)
	if err != nil {
		if !errors.Is(err, ErrConnection) {
			err = errors.Join(ErrConnection, err)
		}
		return nil, &ClusterError{Op: "connect", Err: err}
	}
	ok, err := engine.PoolExists(ctx, pool)
	if err == nil && !ok {
		err = ErrPoolNotFound
	}
	if err != nil {
		_ = engine.Shutdown()
		return nil, &ClusterError{Op: "open-pool", Pool: pool, Err: err}
	}
	return &Session{engine: engine, pool: pool, info: info}, nil
}

// Pool returns the pool name the session is bound to.
func (s *Session) Pool() string { return s.pool }

// Info returns the metadata gathered while connecting.
func (s *Session) Info() ClusterInfo { return s.info }

// Close releases the pool handle and the connection. It must be called exactly
// once; a second call returns ErrSessionClosed without touching the engine.
func (s *Session) Close() error {
	if s.closed {
		return &ClusterError{Op: "close", Pool: s.pool, Err: ErrSessionClosed}
	}
	s.closed = true
	if err := s.engine.Shutdown(); err != nil {
		return &ClusterError{Op: "close", Pool: s.pool, Err: err}
	}
	return nil
}

func (s *Session) check() error {
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) ListImages(ctx context.Context) ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.engine.ListImages(ctx, s.pool)
}

func (s *Session) CreateSnapshot(ctx context.Context, image, snap string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.engine.CreateSnapshot(ctx, s.pool, image, snap)
}

func (s *Session) DeleteSnapshot(ctx context.Context, image, snap string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.engine.DeleteSnapshot(ctx, s.pool, image, snap)
}

func (s *Session) ListSnapshots(ctx context.Context, image string) ([]Snapshot, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.engine.ListSnapshots(ctx, s.pool, image)
}

func (s *Session) ExportFull(ctx context.Context, image, snap, dest string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.engine.ExportFull(ctx, s.pool, image, snap, dest)
}

func (s *Session) ExportDiff(ctx context.Context, image, fromSnap, snap, dest string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.engine.ExportDiff(ctx, s.pool, image, fromSnap, snap, dest)
}
