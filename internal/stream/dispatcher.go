package stream

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"vision-tracker-agent/internal/codec"
	"vision-tracker-agent/internal/model"
)

var _ Channel = (*Dispatcher)(nil)

type DispatcherOptions struct {
	BufferSize        int
	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration
	MaxJitter         time.Duration
	WriteTimeout      time.Duration
	// OnConnState is called from the dispatcher goroutine whenever the link
	// goes up or down.
	OnConnState func(connected bool)
}

type Stats struct {
	Connected           bool      `json:"connected"`
	Sent                uint64    `json:"sent"`
	Dropped             uint64    `json:"dropped"`
	Connects            uint64    `json:"connects"`
	LastRemoteHeartbeat time.Time `json:"last_remote_heartbeat,omitzero"`
}

// Dispatcher is the robot link. Send hands a message to a bounded queue and
// returns; Run owns the connection, writes queued messages, sends heartbeats
// and reconnects after failures. Messages are never retried: one that cannot
// be written, or that is still queued when the link drops, is lost.
type Dispatcher struct {
	logger    *slog.Logger
	transport Transport
	encoder   *codec.Encoder
	queue     chan model.Message

	heartbeatInterval time.Duration
	retryWait         time.Duration
	maxJitter         time.Duration
	writeTimeout      time.Duration
	onConnState       func(bool)

	randMu  sync.Mutex
	randSrc *rand.Rand

	connected           atomic.Bool
	sent                atomic.Uint64
	dropped             atomic.Uint64
	connects            atomic.Uint64
	lastRemoteHeartbeat atomic.Int64
}

func NewDispatcher(transport Transport, encoder *codec.Encoder, opts DispatcherOptions, logger *slog.Logger) *Dispatcher {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 4
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 100 * time.Millisecond
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = time.Second
	}
	if opts.MaxJitter < 0 {
		opts.MaxJitter = 0
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 500 * time.Millisecond
	}
	return &Dispatcher{
		logger:            logger,
		transport:         transport,
		encoder:           encoder,
		queue:             make(chan model.Message, opts.BufferSize),
		heartbeatInterval: opts.HeartbeatInterval,
		retryWait:         opts.ReconnectInterval,
		maxJitter:         opts.MaxJitter,
		writeTimeout:      opts.WriteTimeout,
		onConnState:       opts.OnConnState,
		randSrc:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Send never blocks. When the queue is full the oldest queued message is
// discarded so the freshest targets go out first.
func (d *Dispatcher) Send(msg model.Message) {
	select {
	case d.queue <- msg:
		return
	default:
	}
	select {
	case <-d.queue:
		d.dropped.Add(1)
	default:
	}
	select {
	case d.queue <- msg:
	default:
		d.dropped.Add(1)
	}
}

func (d *Dispatcher) Stats() Stats {
	s := Stats{
		Connected: d.connected.Load(),
		Sent:      d.sent.Load(),
		Dropped:   d.dropped.Load(),
		Connects:  d.connects.Load(),
	}
	if v := d.lastRemoteHeartbeat.Load(); v > 0 {
		s.LastRemoteHeartbeat = time.Unix(0, v).UTC()
	}
	return s
}

// Run keeps the link up until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("robot link starting", "transport", d.transport.Name())
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := d.transport.Dial(ctx)
		if err != nil {
			wait := d.retryWait + d.jitter()
			d.logger.Warn("robot link connect failed", "transport", d.transport.Name(), "error", err, "retry_in", wait)
			if !sleepWithContext(ctx, wait) {
				return nil
			}
			continue
		}

		d.connects.Add(1)
		d.dropStale()
		d.setConnected(true)
		d.logger.Info("robot link connected", "transport", d.transport.Name())

		err = d.serve(ctx, conn)
		d.setConnected(false)
		if cerr := conn.Close(); cerr != nil {
			d.logger.Debug("robot link close failed", "error", cerr)
		}
		if ctx.Err() != nil {
			return nil
		}

		wait := d.retryWait + d.jitter()
		d.logger.Warn("robot link lost, reconnecting", "error", err, "retry_in", wait)
		if !sleepWithContext(ctx, wait) {
			return nil
		}
	}
}

func (d *Dispatcher) serve(ctx context.Context, conn Conn) error {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() {
		readErr <- d.readLoop(sessCtx, conn)
	}()

	heartbeat := time.NewTicker(d.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return fmt.Errorf("read: %w", err)
		case <-heartbeat.C:
			if err := d.write(sessCtx, conn, model.Heartbeat()); err != nil {
				return err
			}
		case msg := <-d.queue:
			if err := d.write(sessCtx, conn, msg); err != nil {
				return err
			}
		}
	}
}

func (d *Dispatcher) write(ctx context.Context, conn Conn, msg model.Message) error {
	frame, err := d.encoder.Frame(msg)
	if err != nil {
		d.dropped.Add(1)
		d.logger.Error("message encode failed, dropping", "type", msg.Type(), "error", err)
		return nil
	}
	wctx, cancel := context.WithTimeout(ctx, d.writeTimeout)
	defer cancel()
	if err := conn.WriteFrame(wctx, frame); err != nil {
		d.dropped.Add(1)
		return fmt.Errorf("write %s: %w", msg.Type(), err)
	}
	d.sent.Add(1)
	return nil
}

func (d *Dispatcher) readLoop(ctx context.Context, conn Conn) error {
	for {
		data, err := conn.ReadFrame(ctx)
		if err != nil {
			return err
		}
		env, err := codec.DecodeFrame(data)
		if err != nil {
			d.logger.Debug("ignoring malformed robot frame", "error", err)
			continue
		}
		switch env.Type {
		case model.MessageHeartbeat:
			d.lastRemoteHeartbeat.Store(time.Now().UnixNano())
		default:
			d.logger.Debug("ignoring robot message", "type", env.Type)
		}
	}
}

// dropStale empties whatever queued up while the link was down.
func (d *Dispatcher) dropStale() {
	for {
		select {
		case <-d.queue:
			d.dropped.Add(1)
		default:
			return
		}
	}
}

func (d *Dispatcher) setConnected(ok bool) {
	if d.connected.Swap(ok) == ok {
		return
	}
	if d.onConnState != nil {
		d.onConnState(ok)
	}
}

func (d *Dispatcher) jitter() time.Duration {
	if d.maxJitter == 0 {
		return 0
	}
	d.randMu.Lock()
	defer d.randMu.Unlock()
	return time.Duration(d.randSrc.Int63n(int64(d.maxJitter)))
}

func sleepWithContext(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
