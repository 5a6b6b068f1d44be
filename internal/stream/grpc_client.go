package stream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
)

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// GRPCTransport opens one bidirectional stream per connection. Frames travel
// as JSON documents through the json codec, so the robot side needs no
// generated stubs.
type GRPCTransport struct {
	logger      *slog.Logger
	addr        string
	method      string
	token       string
	sessionID   string
	tlsConfig   *tls.Config
	dialTimeout time.Duration
}

func NewGRPCTransport(addr, method, token, sessionID string, tlsCfg *tls.Config, dialTimeout time.Duration, logger *slog.Logger) *GRPCTransport {
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	return &GRPCTransport{
		logger:      logger,
		addr:        addr,
		method:      method,
		token:       token,
		sessionID:   sessionID,
		tlsConfig:   tlsCfg,
		dialTimeout: dialTimeout,
	}
}

func (t *GRPCTransport) Name() string {
	return "grpc"
}

func (t *GRPCTransport) Dial(ctx context.Context) (Conn, error) {
	var creds credentials.TransportCredentials
	if t.tlsConfig != nil {
		creds = credentials.NewTLS(t.tlsConfig)
	} else {
		creds = insecure.NewCredentials()
	}

	cc, err := grpc.NewClient(
		t.addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype("json")),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", t.addr, err)
	}
	if err := t.waitReady(ctx, cc); err != nil {
		_ = cc.Close()
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	streamCtx = t.decorateContext(streamCtx)
	s, err := cc.NewStream(streamCtx, &grpc.StreamDesc{StreamName: "StreamTargets", ClientStreams: true, ServerStreams: true}, t.method)
	if err != nil {
		cancel()
		_ = cc.Close()
		return nil, fmt.Errorf("open stream %s: %w", t.method, err)
	}
	t.logger.Debug("grpc stream opened", "addr", t.addr, "method", t.method)
	return &grpcConn{cc: cc, stream: s, cancel: cancel}, nil
}

func (t *GRPCTransport) waitReady(ctx context.Context, cc *grpc.ClientConn) error {
	dialCtx, cancel := context.WithTimeout(ctx, t.dialTimeout)
	defer cancel()

	cc.Connect()
	for state := cc.GetState(); state != connectivity.Ready; state = cc.GetState() {
		if !cc.WaitForStateChange(dialCtx, state) {
			return fmt.Errorf("grpc dial %s: %w (last state %s)", t.addr, dialCtx.Err(), state)
		}
	}
	return nil
}

func (t *GRPCTransport) decorateContext(ctx context.Context) context.Context {
	if t.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+t.token)
	}
	if t.sessionID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, sessionMetadataKey, t.sessionID)
	}
	return ctx
}

type grpcConn struct {
	cc        *grpc.ClientConn
	stream    grpc.ClientStream
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// WriteFrame relies on the stream's flow control; ctx only guards against
// writing after the caller gave up.
func (c *grpcConn) WriteFrame(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.stream.SendMsg(json.RawMessage(frame)); err != nil {
		return fmt.Errorf("grpc send: %w", err)
	}
	return nil
}

func (c *grpcConn) ReadFrame(context.Context) ([]byte, error) {
	var raw json.RawMessage
	if err := c.stream.RecvMsg(&raw); err != nil {
		return nil, fmt.Errorf("grpc recv: %w", err)
	}
	return raw, nil
}

func (c *grpcConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.stream.CloseSend()
		c.cancel()
		c.closeErr = c.cc.Close()
	})
	return c.closeErr
}
