// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*WebSocketHubService)(nil)
	_ suture.Service = (*NewsletterSchedulerService)(nil)
	_ suture.Service = (*KVGCService)(nil)
	_ suture.Service = (*EventRouterService)(nil)
	_ suture.Service = (*NATSServerService)(nil)
	_ suture.Service = (*JobsService)(nil)
)

// serveAsync runs svc.Serve and returns its result channel.
func serveAsync(ctx context.Context, svc suture.Service) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	return errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

type fakeHTTPServer struct {
	listenErr   error
	shutdownErr error
	started     chan struct{}
	stop        chan struct{}
	shutdowns   atomic.Int32
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	f.started <- struct{}{}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	close(f.stop)
	return f.shutdownErr
}

func TestHTTPServerService(t *testing.T) {
	t.Run("graceful shutdown", func(t *testing.T) {
		srv := newFakeHTTPServer()
		ctx, cancel := context.WithCancel(context.Background())
		errCh := serveAsync(ctx, NewHTTPServerService(srv, time.Second))
		<-srv.started
		cancel()
		assert.ErrorIs(t, waitErr(t, errCh), context.Canceled)
		assert.Equal(t, int32(1), srv.shutdowns.Load())
	})

	t.Run("listen failure", func(t *testing.T) {
		srv := newFakeHTTPServer()
		srv.listenErr = errors.New("bind: address already in use")
		err := NewHTTPServerService(srv, time.Second).Serve(context.Background())
		assert.ErrorIs(t, err, srv.listenErr)
	})

	t.Run("shutdown failure", func(t *testing.T) {
		srv := newFakeHTTPServer()
		srv.shutdownErr = errors.New("connections still open")
		ctx, cancel := context.WithCancel(context.Background())
		errCh := serveAsync(ctx, NewHTTPServerService(srv, time.Second))
		<-srv.started
		cancel()
		assert.ErrorIs(t, waitErr(t, errCh), srv.shutdownErr)
	})

	t.Run("default timeout", func(t *testing.T) {
		assert.Equal(t, 10*time.Second, NewHTTPServerService(newFakeHTTPServer(), 0).shutdownTimeout)
	})
}

type fakeHub struct{ runs atomic.Int32 }

func (h *fakeHub) RunWithContext(ctx context.Context) error {
	h.runs.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestWebSocketHubService(t *testing.T) {
	hub := &fakeHub{}
	svc := NewWebSocketHubService(hub)
	assert.Equal(t, "websocket-hub", svc.String())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := serveAsync(ctx, svc)
	cancel()
	assert.ErrorIs(t, waitErr(t, errCh), context.Canceled)
	assert.Equal(t, int32(1), hub.runs.Load())
}

type fakeLifecycle struct {
	startErr error
	started  atomic.Bool
	stopped  atomic.Bool
}

func (f *fakeLifecycle) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started.Store(true)
	return nil
}

func (f *fakeLifecycle) Stop() error {
	f.stopped.Store(true)
	return nil
}

type fakeGC struct{ fakeLifecycle }

func (f *fakeGC) Stop() { f.stopped.Store(true) }

func TestNewsletterSchedulerService(t *testing.T) {
	sched := &fakeLifecycle{}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := serveAsync(ctx, NewNewsletterSchedulerService(sched))
	require.Eventually(t, sched.started.Load, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, waitErr(t, errCh), context.Canceled)
	assert.True(t, sched.stopped.Load())

	failing := &fakeLifecycle{startErr: errors.New("store unavailable")}
	err := NewNewsletterSchedulerService(failing).Serve(context.Background())
	assert.ErrorIs(t, err, failing.startErr)
}

func TestKVGCService(t *testing.T) {
	gc := &fakeGC{}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := serveAsync(ctx, NewKVGCService(gc))
	require.Eventually(t, gc.started.Load, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, waitErr(t, errCh), context.Canceled)
	assert.True(t, gc.stopped.Load())
}

type fakeRouter struct {
	runErr error
	closed atomic.Bool
}

func (r *fakeRouter) Run(ctx context.Context) error {
	if r.runErr != nil {
		return r.runErr
	}
	<-ctx.Done()
	return nil
}

func (r *fakeRouter) Close() error {
	r.closed.Store(true)
	return nil
}

func TestEventRouterService_BuildsFreshRouterPerStart(t *testing.T) {
	var built []*fakeRouter
	svc := NewEventRouterService(func() (EventRouter, error) {
		r := &fakeRouter{}
		if len(built) == 0 {
			r.runErr = errors.New("subscriber closed")
		}
		built = append(built, r)
		return r, nil
	})

	err := svc.Serve(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := serveAsync(ctx, svc)
	cancel()
	assert.ErrorIs(t, waitErr(t, errCh), context.Canceled)

	require.Len(t, built, 2)
	assert.True(t, built[0].closed.Load())
	assert.True(t, built[1].closed.Load())
}

func TestEventRouterService_BuildError(t *testing.T) {
	boom := errors.New("no bus")
	err := NewEventRouterService(func() (EventRouter, error) { return nil, boom }).Serve(context.Background())
	assert.ErrorIs(t, err, boom)
}

type fakeNATS struct {
	running  atomic.Bool
	shutdown atomic.Bool
}

func (n *fakeNATS) IsRunning() bool { return n.running.Load() }

func (n *fakeNATS) Shutdown(context.Context) error {
	n.shutdown.Store(true)
	n.running.Store(false)
	return nil
}

func TestNATSServerService(t *testing.T) {
	t.Run("shuts down the running server", func(t *testing.T) {
		srv := &fakeNATS{}
		srv.running.Store(true)
		svc := NewNATSServerService(srv, func() (NATSServer, error) {
			t.Fatal("start must not be called while the server runs")
			return nil, nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		errCh := serveAsync(ctx, svc)
		cancel()
		assert.ErrorIs(t, waitErr(t, errCh), context.Canceled)
		assert.True(t, srv.shutdown.Load())
	})

	t.Run("restarts a stopped server", func(t *testing.T) {
		stopped := &fakeNATS{}
		fresh := &fakeNATS{}
		svc := NewNATSServerService(stopped, func() (NATSServer, error) {
			fresh.running.Store(true)
			return fresh, nil
		})
		svc.checkInterval = 10 * time.Millisecond

		ctx, cancel := context.WithCancel(context.Background())
		errCh := serveAsync(ctx, svc)
		require.Eventually(t, fresh.running.Load, time.Second, 5*time.Millisecond)

		// The server dying on its own is reported to the supervisor.
		fresh.running.Store(false)
		assert.Error(t, waitErr(t, errCh))
		cancel()
	})
}

func TestNewJobsService(t *testing.T) {
	nop := func(context.Context) error { return nil }

	svc, err := NewJobsService(zerolog.New(io.Discard),
		Job{Name: "expire-orders", Spec: "*/5 * * * *", Run: nop},
		Job{Name: "disabled", Spec: "", Run: nop},
		Job{Name: "audit-cleanup", Spec: "@daily", Run: nop},
	)
	require.NoError(t, err)
	require.Len(t, svc.Jobs(), 2)
	assert.Equal(t, 5*time.Minute, svc.Jobs()[0].Timeout)

	_, err = NewJobsService(zerolog.New(io.Discard), Job{Name: "broken", Spec: "every now and then", Run: nop})
	assert.Error(t, err)
}

func TestJobsService_RunsOnSchedule(t *testing.T) {
	var runs atomic.Int32
	svc, err := NewJobsService(zerolog.New(io.Discard), Job{
		Name: "sessions-cleanup",
		Spec: "@every 1s",
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := serveAsync(ctx, svc)
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	assert.ErrorIs(t, waitErr(t, errCh), context.Canceled)
}
