package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"vision-tracker-agent/internal/codec"
	"vision-tracker-agent/internal/model"
)

const robotHeartbeat = `{"type":"heartbeat","message":"{}"}`

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// startLineRobot accepts one connection, replies with a heartbeat and
// forwards every line it reads.
func startLineRobot(t *testing.T) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	lines := make(chan string, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte(robotHeartbeat + "\n"))
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return ln.Addr().String(), lines
}

func TestTCPTransportRoundTrip(t *testing.T) {
	ctx := testCtx(t)
	addr, lines := startLineRobot(t)

	conn, err := NewTCPTransport(addr, nil, time.Second).Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteFrame(ctx, []byte(`{"type":"targets","message":"{}"}`)))
	select {
	case line := <-lines:
		assert.Equal(t, `{"type":"targets","message":"{}"}`, line)
	case <-ctx.Done():
		t.Fatal("robot never got the frame")
	}

	data, err := conn.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, robotHeartbeat, string(data))

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestTCPTransportDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewTCPTransport(addr, nil, 200*time.Millisecond).Dial(testCtx(t))
	assert.ErrorContains(t, err, "tcp dial")
}

func TestDispatcherOverTCP(t *testing.T) {
	addr, lines := startLineRobot(t)
	enc := codec.NewEncoder(codec.DefaultNudge, nil)
	d := NewDispatcher(NewTCPTransport(addr, nil, time.Second), enc, fastOptions(), discardLogger())
	runDispatcher(t, d)
	require.Eventually(t, func() bool { return d.Stats().Connected }, 2*time.Second, 5*time.Millisecond)

	u := model.NewVisionUpdate(10)
	u.Add(model.NewTargetInfo(0.5, 0.25, 0.125, 0.75))
	d.Send(model.TargetsMessage(u, 20))

	select {
	case line := <-lines:
		env, err := codec.DecodeFrame([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, model.MessageTargets, env.Type)
		assert.JSONEq(t, `{"type":"targets","timestamp":20,"targets":[{"hAngle":0.5,"vAngle":0.25,"hWidth":0.125,"vWidth":0.75}]}`, env.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("robot never got the targets")
	}

	require.Eventually(t, func() bool {
		return !d.Stats().LastRemoteHeartbeat.IsZero()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketTransportRoundTrip(t *testing.T) {
	ctx := testCtx(t)
	headers := make(chan http.Header, 1)
	received := make(chan string, 4)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(robotHeartbeat))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(data)
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	tr := NewWebSocketTransport(url, "secret", "session-1", nil, time.Second, 20*time.Millisecond, discardLogger())
	conn, err := tr.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	h := <-headers
	assert.Equal(t, "Bearer secret", h.Get("Authorization"))
	assert.Equal(t, "session-1", h.Get(sessionHeader))

	data, err := conn.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, robotHeartbeat, string(data))

	require.NoError(t, conn.WriteFrame(ctx, []byte(robotHeartbeat)))
	select {
	case got := <-received:
		assert.Equal(t, robotHeartbeat, got)
	case <-ctx.Done():
		t.Fatal("server never got the frame")
	}

	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.WriteFrame(ctx, []byte("{}")), ErrClosed)
}

func TestGRPCTransportRoundTrip(t *testing.T) {
	ctx := testCtx(t)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	type call struct {
		method string
		md     metadata.MD
	}
	calls := make(chan call, 1)
	received := make(chan string, 4)

	srv := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.UnknownServiceHandler(func(_ any, ss grpc.ServerStream) error {
			method, _ := grpc.MethodFromServerStream(ss)
			md, _ := metadata.FromIncomingContext(ss.Context())
			calls <- call{method: method, md: md}
			if err := ss.SendMsg(json.RawMessage(robotHeartbeat)); err != nil {
				return err
			}
			for {
				var raw json.RawMessage
				if err := ss.RecvMsg(&raw); err != nil {
					if errors.Is(err, io.EOF) {
						return nil
					}
					return err
				}
				received <- string(raw)
			}
		}),
	)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	tr := NewGRPCTransport(lis.Addr().String(), "/vision.v1.VisionService/StreamTargets", "secret", "session-2", nil, 2*time.Second, discardLogger())
	conn, err := tr.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	frame := []byte(`{"type":"targets","message":"{\"type\":\"targets\",\"timestamp\":1,\"targets\":[]}"}`)
	require.NoError(t, conn.WriteFrame(ctx, frame))

	c := <-calls
	assert.Equal(t, "/vision.v1.VisionService/StreamTargets", c.method)
	assert.Equal(t, []string{"Bearer secret"}, c.md.Get("authorization"))
	assert.Equal(t, []string{"session-2"}, c.md.Get(sessionMetadataKey))

	select {
	case got := <-received:
		assert.JSONEq(t, string(frame), got)
	case <-ctx.Done():
		t.Fatal("server never got the frame")
	}

	data, err := conn.ReadFrame(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, robotHeartbeat, string(data))
}

func TestGRPCTransportDialTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	tr := NewGRPCTransport(addr, "/vision.v1.VisionService/StreamTargets", "", "", nil, 200*time.Millisecond, discardLogger())
	_, err = tr.Dial(testCtx(t))
	assert.ErrorContains(t, err, "grpc dial")
}
