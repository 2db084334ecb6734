package redis

import (
	"context"
	"time"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"go.uber.org/zap"
)

type statusWriter interface {
	Write(ctx context.Context, st flow.Status) error
	Delete(ctx context.Context, index int) error
}

type mirrorOp struct {
	status flow.Status
	remove bool
}

// StatusMirror copies status reports to Redis from its own goroutine.
// Reports arriving while the queue is full are dropped.
type StatusMirror struct {
	log     *zap.Logger
	w       statusWriter
	queue   chan mirrorOp
	timeout time.Duration
}

func NewStatusMirror(log *zap.Logger, repo *StatusRepository, queueSize int) *StatusMirror {
	return newStatusMirror(log, repo, queueSize)
}

func newStatusMirror(log *zap.Logger, w statusWriter, queueSize int) *StatusMirror {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &StatusMirror{
		log:     log.Named("status_mirror"),
		w:       w,
		queue:   make(chan mirrorOp, queueSize),
		timeout: 2 * time.Second,
	}
}

func (m *StatusMirror) OnStatus(st flow.Status) { m.offer(mirrorOp{status: st}) }

func (m *StatusMirror) OnRemove(index int) {
	m.offer(mirrorOp{status: flow.Status{Index: index}, remove: true})
}

func (m *StatusMirror) offer(op mirrorOp) {
	select {
	case m.queue <- op:
	default:
		m.log.Warn("status dropped: mirror queue full", zap.Int("flow", op.status.Index))
	}
}

// Run drains the queue until ctx is done.
func (m *StatusMirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-m.queue:
			m.apply(ctx, op)
		}
	}
}

func (m *StatusMirror) apply(ctx context.Context, op mirrorOp) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var err error
	if op.remove {
		err = m.w.Delete(ctx, op.status.Index)
	} else {
		err = m.w.Write(ctx, op.status)
	}
	if err != nil {
		m.log.Warn("mirror failed", zap.Error(err))
	}
}
