package stream

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"
)

const maxLineBytes = 1 << 20

// TCPTransport speaks newline-delimited JSON frames, the framing the robot's
// vision server reads.
type TCPTransport struct {
	addr        string
	tlsConfig   *tls.Config
	dialTimeout time.Duration
}

func NewTCPTransport(addr string, tlsCfg *tls.Config, dialTimeout time.Duration) *TCPTransport {
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	return &TCPTransport{addr: addr, tlsConfig: tlsCfg, dialTimeout: dialTimeout}
}

func (t *TCPTransport) Name() string {
	return "tcp"
}

func (t *TCPTransport) Dial(ctx context.Context) (Conn, error) {
	nd := &net.Dialer{Timeout: t.dialTimeout, KeepAlive: 5 * time.Second}
	var (
		conn net.Conn
		err  error
	)
	if t.tlsConfig != nil {
		td := &tls.Dialer{NetDialer: nd, Config: t.tlsConfig}
		conn, err = td.DialContext(ctx, "tcp", t.addr)
	} else {
		conn, err = nd.DialContext(ctx, "tcp", t.addr)
	}
	if err != nil {
		return nil, fmt.Errorf("tcp dial %s: %w", t.addr, err)
	}
	return &tcpConn{conn: conn, reader: bufio.NewReader(conn)}, nil
}

type tcpConn struct {
	conn      net.Conn
	reader    *bufio.Reader
	closeOnce sync.Once
	closeErr  error
}

func (c *tcpConn) WriteFrame(ctx context.Context, frame []byte) error {
	var deadline time.Time
	if dl, ok := ctx.Deadline(); ok {
		deadline = dl
	}
	_ = c.conn.SetWriteDeadline(deadline)

	line := make([]byte, 0, len(frame)+1)
	line = append(line, frame...)
	line = append(line, '\n')
	if _, err := c.conn.Write(line); err != nil {
		return fmt.Errorf("tcp write: %w", err)
	}
	return nil
}

func (c *tcpConn) ReadFrame(ctx context.Context) ([]byte, error) {
	var deadline time.Time
	if dl, ok := ctx.Deadline(); ok {
		deadline = dl
	}
	_ = c.conn.SetReadDeadline(deadline)

	var line []byte
	for {
		chunk, err := c.reader.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > maxLineBytes {
			return nil, fmt.Errorf("tcp read: line exceeds %d bytes", maxLineBytes)
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("tcp read: %w", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
}

func (c *tcpConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
