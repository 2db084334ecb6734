// Package session serves the control protocol over TCP. One controller
// connection is served at a time; every byte sent on it goes through a
// single writer goroutine.
package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/metrics"
	"github.com/edirooss/streambed-server/internal/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher applies decoded config and flow messages. A returned error is
// logged; the message is acknowledged regardless.
type Dispatcher interface {
	Dispatch(ctx context.Context, m protocol.Message) error
}

type Options struct {
	// QueueSize bounds the outbound frame queue of a connection.
	QueueSize    int
	WriteTimeout time.Duration
	Metrics      *metrics.Metrics
}

func (o *Options) applyDefaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
}

type Server struct {
	log  *zap.Logger
	disp Dispatcher
	opts Options

	mu     sync.Mutex
	active *conn
	wg     sync.WaitGroup
}

func New(log *zap.Logger, disp Dispatcher, opts Options) *Server {
	opts.applyDefaults()
	return &Server{
		log:  log.Named("session"),
		disp: disp,
		opts: opts,
	}
}

type conn struct {
	id  string
	nc  net.Conn
	log *zap.Logger

	out        chan []byte
	closed     chan struct{}
	writerDone chan struct{}
}

// Serve accepts controller connections on ln until ctx is done. A
// connection arriving while another is active is closed immediately.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.log.Info("control listener started", zap.String("addr", ln.Addr().String()))
	defer s.wg.Wait()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.closeActive()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.closeActive()
			return err
		}

		c := &conn{
			id:         uuid.New().String(),
			nc:         nc,
			out:        make(chan []byte, s.opts.QueueSize),
			closed:     make(chan struct{}),
			writerDone: make(chan struct{}),
		}
		c.log = s.log.With(zap.String("session", c.id), zap.String("remote", nc.RemoteAddr().String()))

		s.mu.Lock()
		busy := s.active != nil
		if !busy {
			s.active = c
		}
		s.mu.Unlock()

		if busy {
			c.log.Warn("connection refused: controller already connected")
			s.opts.Metrics.Connection(metrics.ResultRefused)
			nc.Close()
			continue
		}

		s.opts.Metrics.Connection(metrics.ResultAccepted)
		c.log.Info("controller connected")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, c)
		}()
	}
}

func (s *Server) closeActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.nc.Close()
	}
}

// Connected reports whether a controller is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

func (s *Server) handle(ctx context.Context, c *conn) {
	go s.writer(c)

	err := s.read(ctx, c)
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		c.log.Info("controller disconnected")
	default:
		c.log.Warn("controller connection lost", zap.Error(err))
	}

	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()

	close(c.closed)
	c.nc.Close()
	<-c.writerDone
}

func (s *Server) read(ctx context.Context, c *conn) error {
	r := bufio.NewReaderSize(c.nc, 4096)
	for {
		frame, err := protocol.ReadFrame(r)
		if errors.Is(err, protocol.ErrFrameTooLarge) {
			c.log.Warn("frame dropped", zap.Error(err))
			s.opts.Metrics.Frame("", metrics.ResultMalformed)
			continue
		}
		if err != nil {
			return err
		}

		m, err := protocol.Decode(frame)
		if err != nil {
			c.log.Warn("frame dropped", zap.Error(err))
			s.opts.Metrics.Frame("", metrics.ResultMalformed)
			continue
		}
		if _, ok := m.(*protocol.StatusMessage); ok {
			c.log.Warn("unexpected inbound status ignored")
			s.opts.Metrics.Frame(m.Command(), metrics.ResultRejected)
			continue
		}
		logUnknown(c.log, m)

		result := metrics.ResultOK
		if err := s.disp.Dispatch(ctx, m); err != nil {
			c.log.Warn("message partially rejected", zap.String("cmd", m.Command()), zap.Error(err))
			result = metrics.ResultRejected
		}
		s.opts.Metrics.Frame(m.Command(), result)

		if !c.enqueue(protocol.Encode(protocol.AckFor(m))) {
			return net.ErrClosed
		}
	}
}

func logUnknown(log *zap.Logger, m protocol.Message) {
	var unknown []string
	switch m := m.(type) {
	case *protocol.ConfigMessage:
		unknown = m.Unknown
	case *protocol.FlowMessage:
		unknown = m.Unknown
	}
	if len(unknown) > 0 {
		log.Warn("unknown parameters ignored", zap.String("cmd", m.Command()), zap.Strings("params", unknown))
	}
}

// enqueue blocks until the frame is queued or the writer has exited.
func (c *conn) enqueue(b []byte) bool {
	select {
	case c.out <- b:
		return true
	case <-c.writerDone:
		return false
	}
}

func (s *Server) writer(c *conn) {
	defer close(c.writerDone)
	for {
		select {
		case <-c.closed:
			return
		case b := <-c.out:
			c.nc.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if _, err := c.nc.Write(b); err != nil {
				c.log.Warn("write failed", zap.Error(err))
				c.nc.Close()
				return
			}
		}
	}
}

// OnStatus queues a status report to the connected controller. Reports
// are dropped when no controller is connected or its queue is full.
func (s *Server) OnStatus(st flow.Status) {
	s.mu.Lock()
	c := s.active
	s.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case c.out <- protocol.Encode(&protocol.StatusMessage{Status: st}):
	default:
		c.log.Warn("status dropped: outbound queue full", zap.Int("flow", st.Index))
	}
}
