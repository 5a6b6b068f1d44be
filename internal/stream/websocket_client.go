package stream

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketTransport sends one text message per frame.
type WebSocketTransport struct {
	logger       *slog.Logger
	url          string
	token        string
	sessionID    string
	tlsConfig    *tls.Config
	dialTimeout  time.Duration
	pingInterval time.Duration
}

func NewWebSocketTransport(url, token, sessionID string, tlsCfg *tls.Config, dialTimeout, pingInterval time.Duration, logger *slog.Logger) *WebSocketTransport {
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 5 * time.Second
	}
	return &WebSocketTransport{
		logger:       logger,
		url:          url,
		token:        token,
		sessionID:    sessionID,
		tlsConfig:    tlsCfg,
		dialTimeout:  dialTimeout,
		pingInterval: pingInterval,
	}
}

func (t *WebSocketTransport) Name() string {
	return "websocket"
}

func (t *WebSocketTransport) Dial(ctx context.Context) (Conn, error) {
	h := http.Header{}
	if t.token != "" {
		h.Set("Authorization", "Bearer "+t.token)
	}
	if t.sessionID != "" {
		h.Set(sessionHeader, t.sessionID)
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.dialTimeout,
		TLSClientConfig:  t.tlsConfig,
	}

	conn, _, err := dialer.DialContext(ctx, t.url, h)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", t.url, err)
	}
	conn.SetReadLimit(maxLineBytes)

	c := &wsConn{conn: conn, done: make(chan struct{})}
	go c.pingLoop(t.pingInterval, t.dialTimeout, t.logger)
	return c, nil
}

type wsConn struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) WriteFrame(ctx context.Context, frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	var deadline time.Time
	if dl, ok := ctx.Deadline(); ok {
		deadline = dl
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (c *wsConn) ReadFrame(context.Context) ([]byte, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("websocket read: %w", err)
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *wsConn) pingLoop(interval, timeout time.Duration, logger *slog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout)); err != nil {
				logger.Debug("websocket ping failed", "error", err)
			}
		}
	}
}
