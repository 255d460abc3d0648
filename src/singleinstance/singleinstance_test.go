package singleinstance

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, ctx context.Context) Server {
	t.Helper()
	srv := NewServer(PortRange{Start: 0, End: 0})
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback TCP unavailable in this environment: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func clientFor(srv Server) Client {
	return NewClient(PortRange{Start: srv.Port(), End: srv.Port()})
}

func TestServerClientRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := startServer(t, ctx)

	got := make(chan Request, 1)
	go Serve(ctx, srv, func(ctx context.Context, req Request) (string, error) {
		got <- req
		return "https://example.com", nil
	})

	delegated, payload, err := clientFor(srv).TryScan(ctx, 1500*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, delegated)
	assert.Equal(t, "https://example.com", payload)
	assert.Equal(t, 1500*time.Millisecond, (<-got).Timeout)
}

func TestHandlerErrorIsRelayed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := startServer(t, ctx)

	go Serve(ctx, srv, func(context.Context, Request) (string, error) {
		return "", errors.New("no QR code found in selection")
	})

	delegated, _, err := clientFor(srv).TryScan(ctx, 0)
	assert.True(t, delegated)
	require.EqualError(t, err, "no QR code found in selection")
}

func TestNoResidentIsNotDelegated(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback TCP unavailable: %v", err)
	}
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())

	delegated, _, err := NewClient(PortRange{Start: port, End: port}).TryScan(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, delegated)
}

func TestClientGivesUpWithContext(t *testing.T) {
	srvCtx, srvCancel := context.WithCancel(context.Background())
	defer srvCancel()
	srv := startServer(t, srvCtx)

	release := make(chan struct{})
	defer close(release)
	go Serve(srvCtx, srv, func(context.Context, Request) (string, error) {
		<-release
		return "late", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	delegated, _, err := clientFor(srv).TryScan(ctx, 0)
	assert.True(t, delegated)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSecondServerCannotBind(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := startServer(t, ctx)

	second := NewServer(PortRange{Start: first.Port(), End: first.Port()})
	assert.Error(t, second.Start(ctx))
}

func TestParseScan(t *testing.T) {
	req, err := parseScan("SCAN 250\n")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, req.Timeout)

	req, err = parseScan("SCAN\n")
	require.NoError(t, err)
	assert.Zero(t, req.Timeout)

	_, err = parseScan("STDOUT\n")
	assert.Error(t, err)
	_, err = parseScan("SCAN -1\n")
	assert.Error(t, err)
}

func TestHandlerCancelledWhenClientLeaves(t *testing.T) {
	srvCtx, srvCancel := context.WithCancel(context.Background())
	defer srvCancel()
	srv := startServer(t, srvCtx)

	calls := make(chan struct{}, 2)
	finished := make(chan error, 2)
	go Serve(srvCtx, srv, func(ctx context.Context, req Request) (string, error) {
		calls <- struct{}{}
		if req.Timeout > 0 {
			return "second", nil
		}
		<-ctx.Done()
		finished <- ctx.Err()
		return "", ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	delegated, _, err := clientFor(srv).TryScan(ctx, 0)
	assert.True(t, delegated)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case err := <-finished:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("handler still running after the client disconnected")
	}

	// The resident is free for the next client.
	next, nextCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer nextCancel()
	delegated, payload, err := clientFor(srv).TryScan(next, time.Second)
	require.NoError(t, err)
	assert.True(t, delegated)
	assert.Equal(t, "second", payload)
	assert.Len(t, calls, 2)
}

func TestSilentClientDoesNotBlockOthers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := startServer(t, ctx)

	go Serve(ctx, srv, func(context.Context, Request) (string, error) {
		return "ok", nil
	})

	silent, err := net.Dial("tcp", net.JoinHostPort(residentHost, strconv.Itoa(srv.Port())))
	require.NoError(t, err)
	defer silent.Close()

	start := time.Now()
	delegated, payload, err := clientFor(srv).TryScan(ctx, 0)
	require.NoError(t, err)
	assert.True(t, delegated)
	assert.Equal(t, "ok", payload)
	assert.Less(t, time.Since(start), time.Second, "handshake waited on the silent client")
}
