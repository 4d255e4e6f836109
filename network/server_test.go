package network

import (
	"context"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwmon/monitor/arbiter"
	"github.com/hwmon/monitor/event"
	"github.com/hwmon/monitor/internal/task"
	"github.com/hwmon/monitor/message"
	"github.com/hwmon/monitor/platform"
)

func startServer(t *testing.T, arb *arbiter.Arbiter, h event.Handler) *Server {
	t.Helper()

	cfg := testConfig(t, WithAcceptTimeout(20*time.Millisecond))
	srv := NewServer(cfg, arb, h, platform.NewNoopPower(), platform.StaticResolver{IP: net.IPv4(127, 0, 0, 1)})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Listen(ctx))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	return srv
}

func dialServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestServer_ServeWithoutListen(t *testing.T) {
	cfg := testConfig(t)
	srv := NewServer(cfg, arbiter.New(), event.Discard, nil, nil)
	assert.Nil(t, srv.Addr())
	assert.ErrorIs(t, srv.Serve(context.Background()), ErrNotListening)
}

func TestServer_AcceptDuringShutdownClosesConn(t *testing.T) {
	require := require.New(t)

	cfg := testConfig(t, WithAcceptTimeout(time.Second))
	srv := NewServer(cfg, arbiter.New(), event.Discard, platform.NewNoopPower(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(srv.Listen(ctx))
	defer srv.closeListener()

	client, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(err)
	defer client.Close()

	// shutdown started after the connection reached the backlog
	srv.shutdown.Store(true)
	mgr := task.NewManager(ctx, cfg.Logger(), nil)
	require.False(srv.tryAcceptConn(mgr))
	mgr.Stop()
	mgr.Wait()

	require.Zero(srv.SessionCount())
	require.Zero(srv.Metrics().ActiveSessions.Load())
	require.NoError(client.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, err = client.Read(make([]byte, 1))
	require.Error(err)
	require.NotErrorIs(err, os.ErrDeadlineExceeded)
}

func TestServer_ConcurrentHandshake(t *testing.T) {
	require := require.New(t)

	arb := arbiter.New()
	srv := startServer(t, arb, event.Discard)

	names := []string{"alpha", "beta"}
	conns := []net.Conn{dialServer(t, srv), dialServer(t, srv)}

	responses := make([]*message.ConnectionResponse, 2)
	var wg sync.WaitGroup
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = conns[i].Write(message.Encode(connRequest(names[i], false, message.LocalVersion)))
		}(i)
	}
	wg.Wait()

	for i, conn := range conns {
		resp, ok := readFrame(t, conn).(*message.ConnectionResponse)
		require.True(ok)
		responses[i] = resp
	}

	var accepted, rejected int
	var winner string
	for i, resp := range responses {
		if resp.Accepted {
			accepted++
			winner = names[i]
		} else {
			rejected++
			require.True(resp.InUse)
		}
	}
	require.Equal(1, accepted)
	require.Equal(1, rejected)
	for _, resp := range responses {
		if resp.InUse {
			require.Equal(winner, resp.Hostname)
		}
	}
	require.Equal(winner, arb.Hostname())
	require.EqualValues(1, srv.Metrics().SessionsAccepted.Load())
	require.EqualValues(1, srv.Metrics().SessionsRejected.Load())
}

func TestServer_DisconnectActive(t *testing.T) {
	require := require.New(t)

	arb := arbiter.New()
	events := make(event.Chan, 8)
	srv := startServer(t, arb, events)

	conn := dialServer(t, srv)
	_, err := conn.Write(message.Encode(connRequest("editor-pc", false, message.LocalVersion)))
	require.NoError(err)
	resp, ok := readFrame(t, conn).(*message.ConnectionResponse)
	require.True(ok)
	require.True(resp.Accepted)
	require.Equal(event.Connected, waitEvent(t, events).Kind)
	require.Equal(1, srv.SessionCount())

	srv.DisconnectActive()

	_, ok = readFrame(t, conn).(*message.Disconnect)
	require.True(ok)
	require.Equal(event.Disconnected, waitEvent(t, events).Kind)
	require.True(arb.IsStopped())
	require.Nil(arb.Active())
	require.Eventually(func() bool { return srv.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	// no active session is a no-op
	srv.DisconnectActive()
}

func TestServer_StopClosesSessions(t *testing.T) {
	cfg := testConfig(t, WithAcceptTimeout(20*time.Millisecond))
	srv := NewServer(cfg, arbiter.New(), event.Discard, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Listen(ctx))
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	conn := dialServer(t, srv)
	require.Eventually(t, func() bool { return srv.SessionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, srv.SessionCount())

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err := conn.Read(make([]byte, 1))
	assert.Error(t, err)

	assert.ErrorIs(t, srv.Serve(context.Background()), ErrServerClosed)
}
