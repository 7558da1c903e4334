package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"docchat-cli/internal/api"
	"docchat-cli/internal/citation"
	"docchat-cli/internal/metrics"
	"docchat-cli/internal/stream"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is delivered on a Turn's channel.
type Event interface {
	turnID() uuid.UUID
}

// FlushEvent carries the accumulated text of a throttled flush.
type FlushEvent struct {
	Turn     uuid.UUID
	Snapshot string
}

// DoneEvent carries the cleaned answer of a completed stream.
type DoneEvent struct {
	Turn   uuid.UUID
	Result citation.Result
}

// ErrorEvent reports a failed request or stream with whatever text arrived.
type ErrorEvent struct {
	Turn    uuid.UUID
	Err     error
	Partial string
}

func (e FlushEvent) turnID() uuid.UUID { return e.Turn }
func (e DoneEvent) turnID() uuid.UUID  { return e.Turn }
func (e ErrorEvent) turnID() uuid.UUID { return e.Turn }

// TurnOf returns the id of the turn an event belongs to.
func TurnOf(e Event) uuid.UUID { return e.turnID() }

// Session asks questions through an Asker and streams the answers.
type Session struct {
	asker    api.Asker
	cleaner  *citation.Cleaner
	throttle time.Duration
	clock    stream.Clock
	logger   *zap.Logger
	metrics  *metrics.Collector
}

type Option func(*Session)

func WithThrottle(d time.Duration) Option {
	return func(s *Session) { s.throttle = d }
}

func WithClock(c stream.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Session) { s.metrics = m }
}

func WithCleaner(c *citation.Cleaner) Option {
	return func(s *Session) {
		if c != nil {
			s.cleaner = c
		}
	}
}

func NewSession(asker api.Asker, opts ...Option) *Session {
	s := &Session{
		asker:    asker,
		throttle: stream.DefaultThrottle,
		clock:    stream.SystemClock,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cleaner == nil {
		s.cleaner = citation.NewCleaner(s.logger, s.metrics)
	}
	s.logger = s.logger.With(zap.String("component", "chat"))
	return s
}

// Turn is one question and its answer stream.
type Turn struct {
	ID    uuid.UUID
	Query string

	events   chan Event
	done     chan struct{}
	stop     sync.Once
	sendMu   sync.Mutex
	finished atomic.Bool

	ingestor *stream.Ingestor
	cancel   context.CancelFunc
}

// Events yields the turn's events and is closed when the turn ends.
func (t *Turn) Events() <-chan Event { return t.events }

// Cancel stops the turn silently: no event is delivered after Cancel
// returns. It reports false when the turn had already finished.
func (t *Turn) Cancel() bool {
	stopped := false
	t.stop.Do(func() {
		stopped = !t.finished.Load()
		// unblock a sender first; the ingestor waits for its callback
		close(t.done)
		t.sendMu.Lock()
		t.sendMu.Unlock() //nolint:staticcheck
		t.ingestor.Cancel()
		t.cancel()
	})
	return stopped
}

// Start sends the question and streams the answer in the background.
// Cleaning runs once, after the final flush.
func (s *Session) Start(ctx context.Context, query string) *Turn {
	ctx, cancel := context.WithCancel(ctx)
	t := &Turn{
		ID:     uuid.New(),
		Query:  query,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
		cancel: cancel,
		ingestor: stream.NewIngestor(
			stream.WithThrottle(s.throttle),
			stream.WithClock(s.clock),
			stream.WithLogger(s.logger),
			stream.WithMetrics(s.metrics),
		),
	}
	logger := s.logger.With(zap.String("turn", t.ID.String()))

	go func() {
		defer close(t.events)
		defer cancel()

		body, err := s.asker.Ask(ctx, query)
		if err != nil {
			if t.cancelled() {
				return
			}
			logger.Warn("ask failed", zap.Error(err))
			t.send(ErrorEvent{Turn: t.ID, Err: err}, true)
			return
		}

		err = t.ingestor.Run(ctx, body, stream.Callbacks{
			OnFlush: func(snapshot string) {
				t.send(FlushEvent{Turn: t.ID, Snapshot: snapshot}, false)
			},
			OnComplete: func(final string) {
				result := s.cleaner.Clean(final)
				logger.Debug("answer completed",
					zap.Int("chars", len(result.Text)),
					zap.Int("citations", len(result.Citations)),
					zap.Bool("sources_filtered", result.SourcesWereFiltered),
				)
				t.send(DoneEvent{Turn: t.ID, Result: result}, true)
			},
			OnError: func(err error) {
				ev := ErrorEvent{Turn: t.ID, Err: err}
				var perr *stream.PartialError
				if errors.As(err, &perr) {
					ev.Err, ev.Partial = perr.Err, perr.Partial
				}
				t.send(ev, true)
			},
		})
		if errors.Is(err, stream.ErrCancelled) {
			logger.Debug("turn cancelled")
		}
	}()
	return t
}

func (t *Turn) cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// send delivers e unless the turn was cancelled. A send that starts after
// Cancel closed done never reaches the channel.
func (t *Turn) send(e Event, terminal bool) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if t.cancelled() {
		return
	}
	if terminal {
		t.finished.Store(true)
	}
	select {
	case t.events <- e:
	case <-t.done:
	}
}

// Ask runs a turn to the end and returns its result. Flushes are passed to
// onFlush when it is not nil.
func (s *Session) Ask(ctx context.Context, query string, onFlush func(snapshot string)) (citation.Result, error) {
	t := s.Start(ctx, query)
	stop := context.AfterFunc(ctx, func() { t.Cancel() })
	defer stop()

	var (
		result citation.Result
		err    = stream.ErrCancelled
	)
	for ev := range t.Events() {
		switch ev := ev.(type) {
		case FlushEvent:
			if onFlush != nil {
				onFlush(ev.Snapshot)
			}
		case DoneEvent:
			result, err = ev.Result, nil
		case ErrorEvent:
			result = citation.Result{Text: ev.Partial}
			err = &stream.PartialError{Partial: ev.Partial, Err: ev.Err}
		}
	}
	return result, err
}
