// internal/session/session.go
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"emg-service/internal/model"
	"emg-service/internal/parser"
	"emg-service/internal/protocol"
)

var (
	// ErrCancelled is returned by Start when Cancel ran before the transport
	// finished connecting
	ErrCancelled = errors.New("session cancelled")

	// ErrAlreadyStarted is returned by a second call to Start
	ErrAlreadyStarted = errors.New("session already started")
)

// SampleFunc receives each parsed sample on the read goroutine
type SampleFunc func(sample model.Sample)

// EndFunc receives the end reason once, after the transport is closed
type EndFunc func(reason model.EndReason)

// Session runs one connection attempt and its read loop. It exclusively owns
// its transport. Callbacks run on the read goroutine and must not call Wait.
type Session struct {
	id        string
	transport protocol.Transport
	logger    *zap.Logger

	alive   atomic.Bool
	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	startedAt time.Time
	endedAt   time.Time
	endMutex  sync.Mutex
	endReason *model.EndReason

	linesRead        atomic.Int64
	samplesDelivered atomic.Int64
	linesDiscarded   atomic.Int64
}

// New creates a session over transport. The transport must not be
// connected yet and is closed by the session.
func New(transport protocol.Transport, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()

	s := &Session{
		id:        id,
		transport: transport,
		logger: logger.With(
			zap.String("session_id", id),
			zap.String("connection_type", string(transport.GetProtocolType())),
			zap.String("target", transport.Target()),
		),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	s.alive.Store(true)
	return s
}

// Start connects the transport and launches the read loop. A connect
// failure is returned as is and onEnd is never called; otherwise onEnd runs
// exactly once when the loop ends.
func (s *Session) Start(ctx context.Context, onSample SampleFunc, onEnd EndFunc) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	if err := s.connect(ctx); err != nil {
		cancelled := !s.alive.Load()

		s.transport.Close()
		s.finish(nil)
		close(s.done)

		if cancelled {
			return ErrCancelled
		}
		return err
	}

	if !s.alive.Load() {
		s.transport.Close()
		s.finish(nil)
		close(s.done)
		return ErrCancelled
	}

	s.logger.Debug("Session connected")

	go s.readLoop(onSample, onEnd)
	return nil
}

// connect bounds the transport handshake by both ctx and Cancel
func (s *Session) connect(ctx context.Context) error {
	connectCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	return s.transport.Connect(connectCtx)
}

func (s *Session) readLoop(onSample SampleFunc, onEnd EndFunc) {
	defer close(s.done)

	reason := s.run(onSample)

	s.transport.Close()
	s.finish(&reason)

	s.logger.Debug("Session ended", zap.String("end_reason", reason.String()))

	if onEnd != nil {
		onEnd(reason)
	}
}

func (s *Session) run(onSample SampleFunc) model.EndReason {
	for {
		if !s.alive.Load() {
			return model.Cancelled()
		}

		line, err := s.transport.ReadLine()
		if err != nil {
			if !s.alive.Load() {
				return model.Cancelled()
			}
			if errors.Is(err, io.EOF) {
				return model.EndOfStream()
			}
			return model.TransportError(err.Error())
		}
		s.linesRead.Add(1)

		sample, ok := parser.Parse(line)
		if !ok {
			s.linesDiscarded.Add(1)
			continue
		}

		if !s.alive.Load() {
			return model.Cancelled()
		}
		if onSample != nil {
			onSample(sample)
		}
		s.samplesDelivered.Add(1)
	}
}

// Cancel stops the session. It closes the transport to unblock a pending
// read or abort a connect in progress. Safe to call repeatedly and from any
// goroutine.
func (s *Session) Cancel() {
	if !s.alive.CompareAndSwap(true, false) {
		return
	}
	s.cancel()
	if err := s.transport.Close(); err != nil {
		s.logger.Debug("Transport close failed", zap.Error(err))
	}
}

// Wait blocks until the session has fully stopped. A session that was
// never started is not waited for.
func (s *Session) Wait() {
	if !s.started.Load() {
		return
	}
	<-s.done
}

// Done is closed once the session has fully stopped
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stats returns a copy of the session counters
func (s *Session) Stats() model.SessionStats {
	stats := model.SessionStats{
		SessionID:        s.id,
		StartedAt:        s.startedAt,
		LinesRead:        s.linesRead.Load(),
		SamplesDelivered: s.samplesDelivered.Load(),
		LinesDiscarded:   s.linesDiscarded.Load(),
	}

	s.endMutex.Lock()
	defer s.endMutex.Unlock()
	if !s.endedAt.IsZero() {
		endedAt := s.endedAt
		stats.EndedAt = &endedAt
	}
	if s.endReason != nil {
		reason := *s.endReason
		stats.EndReason = &reason
	}
	return stats
}

func (s *Session) finish(reason *model.EndReason) {
	s.alive.Store(false)
	s.cancel()

	s.endMutex.Lock()
	defer s.endMutex.Unlock()
	s.endedAt = time.Now()
	s.endReason = reason
}
