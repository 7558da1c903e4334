package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"docchat-cli/internal/metrics"

	"go.uber.org/zap"
)

var (
	// ErrCancelled is returned by Run when the caller cancelled the stream.
	ErrCancelled = errors.New("stream cancelled")
	// ErrAlreadyStarted is returned when Run is called twice.
	ErrAlreadyStarted = errors.New("stream already started")
)

// PartialError is a transport failure together with whatever text arrived
// before it.
type PartialError struct {
	Partial string
	Err     error
}

func (e *PartialError) Error() string { return e.Err.Error() }
func (e *PartialError) Unwrap() error { return e.Err }

// State of an ingestor.
type State int32

const (
	StateIdle State = iota
	StateReading
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Callbacks receive the lifecycle of one stream. Any of them may be nil.
// Exactly one of OnError and OnComplete runs, unless the stream is
// cancelled, in which case none of them runs from then on.
type Callbacks struct {
	OnFragment func(text string)
	OnFlush    func(snapshot string)
	OnError    func(err error)
	OnComplete func(final string)
}

const defaultReadSize = 32 * 1024

// Ingestor drives one body stream through a Decoder and a Buffer.
type Ingestor struct {
	throttle time.Duration
	clock    Clock
	readSize int
	logger   *zap.Logger
	metrics  *metrics.Collector

	state atomic.Int32

	// cbMu is held while a callback runs; Cancel takes it once so that no
	// callback starts after Cancel returns.
	cbMu sync.Mutex

	mu  sync.Mutex
	src io.ReadCloser
	buf *Buffer
}

type Option func(*Ingestor)

func WithThrottle(d time.Duration) Option {
	return func(in *Ingestor) { in.throttle = d }
}

func WithClock(c Clock) Option {
	return func(in *Ingestor) { in.clock = c }
}

func WithReadSize(n int) Option {
	return func(in *Ingestor) {
		if n > 0 {
			in.readSize = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(in *Ingestor) {
		if l != nil {
			in.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(in *Ingestor) { in.metrics = m }
}

// NewIngestor returns an idle ingestor. Each ingestor handles one stream.
func NewIngestor(opts ...Option) *Ingestor {
	in := &Ingestor{
		throttle: DefaultThrottle,
		clock:    SystemClock,
		readSize: defaultReadSize,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = in.logger.With(zap.String("component", "stream"))
	return in
}

func (in *Ingestor) State() State {
	return State(in.state.Load())
}

// Run reads src until end of stream, failure or cancellation. The source
// is always closed before Run returns.
//
// A done ctx closes the source and is reported through OnError like any
// other transport failure. Use Cancel for a silent stop.
func (in *Ingestor) Run(ctx context.Context, src io.ReadCloser, cb Callbacks) error {
	if !in.state.CompareAndSwap(int32(StateIdle), int32(StateReading)) {
		_ = src.Close()
		if in.State() == StateCancelled {
			return ErrCancelled
		}
		return ErrAlreadyStarted
	}

	start := time.Now()
	buf := NewBuffer(in.throttle, in.clock, func(snapshot string) {
		in.deliver(func() {
			in.metrics.Flushed()
			if cb.OnFlush != nil {
				cb.OnFlush(snapshot)
			}
		})
	})

	in.mu.Lock()
	in.src = src
	in.buf = buf
	in.mu.Unlock()

	// Cancel may have won between the state swap and the assignment above.
	if in.State() == StateCancelled {
		_ = src.Close()
		return ErrCancelled
	}

	stop := context.AfterFunc(ctx, func() { _ = src.Close() })
	defer stop()

	dec := NewDecoder()
	chunk := make([]byte, in.readSize)
	for {
		n, err := src.Read(chunk)
		if in.State() == StateCancelled {
			return ErrCancelled
		}

		if n > 0 {
			in.metrics.StreamBytes(n)
			if text := dec.Decode(chunk[:n]); text != "" {
				in.fragment(buf, text, cb)
			}
		}

		if errors.Is(err, io.EOF) {
			if tail := dec.Flush(); tail != "" {
				in.fragment(buf, tail, cb)
			}
			final, _ := buf.ForceFlush()
			_ = src.Close()
			if !in.finish(StateCompleted) {
				return ErrCancelled
			}
			in.logger.Debug("stream completed", zap.Int("chars", len(final)))
			in.metrics.StreamFinished(metrics.OutcomeCompleted, time.Since(start))
			in.deliver(func() {
				if cb.OnComplete != nil {
					cb.OnComplete(final)
				}
			})
			return nil
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			buf.Stop()
			_ = src.Close()
			if !in.finish(StateFailed) {
				return ErrCancelled
			}
			perr := &PartialError{Partial: buf.Snapshot(), Err: err}
			in.logger.Warn("stream failed",
				zap.Error(err),
				zap.Int("partial_chars", len(perr.Partial)),
			)
			in.metrics.StreamFinished(metrics.OutcomeFailed, time.Since(start))
			in.deliver(func() {
				if cb.OnError != nil {
					cb.OnError(perr)
				}
			})
			return perr
		}
	}
}

// Cancel stops the stream: reading ends, the pending flush is dropped and
// no callback runs afterwards. It reports false when the stream had
// already reached a terminal state.
func (in *Ingestor) Cancel() bool {
	for {
		s := in.State()
		if s.terminal() {
			return false
		}
		if in.state.CompareAndSwap(int32(s), int32(StateCancelled)) {
			break
		}
	}

	// wait out a callback that is already running
	in.cbMu.Lock()
	in.cbMu.Unlock() //nolint:staticcheck

	in.mu.Lock()
	src, buf := in.src, in.buf
	in.mu.Unlock()
	if buf != nil {
		buf.Stop()
	}
	if src != nil {
		_ = src.Close()
	}
	in.metrics.StreamFinished(metrics.OutcomeCancelled, 0)
	in.logger.Debug("stream cancelled")
	return true
}

func (in *Ingestor) fragment(buf *Buffer, text string, cb Callbacks) {
	buf.Append(text)
	in.deliver(func() {
		if cb.OnFragment != nil {
			cb.OnFragment(text)
		}
	})
}

func (in *Ingestor) finish(to State) bool {
	return in.state.CompareAndSwap(int32(StateReading), int32(to))
}

func (in *Ingestor) deliver(f func()) {
	in.cbMu.Lock()
	defer in.cbMu.Unlock()
	if in.State() == StateCancelled {
		return
	}
	f()
}
