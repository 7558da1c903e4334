package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

// chunkSource yields the queued chunks one Read at a time, then EOF or err.
type chunkSource struct {
	chunks [][]byte
	err    error

	mu     sync.Mutex
	closed bool
}

func (s *chunkSource) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	n := copy(p, s.chunks[0])
	s.chunks = s.chunks[1:]
	return n, nil
}

func (s *chunkSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *chunkSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// pipeSource hands out whatever is pushed, even after Close, so tests can
// inject fragments past a cancellation.
type pipeSource struct {
	ch     chan []byte
	closed chan struct{}
	once   sync.Once
}

func newPipeSource() *pipeSource {
	return &pipeSource{ch: make(chan []byte), closed: make(chan struct{})}
}

func (s *pipeSource) Read(p []byte) (int, error) {
	b, ok := <-s.ch
	if !ok {
		return 0, io.EOF
	}
	return copy(p, b), nil
}

func (s *pipeSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type events struct {
	mu        sync.Mutex
	fragments []string
	flushes   []string
	errs      []error
	completed []string
}

func (e *events) callbacks() Callbacks {
	return Callbacks{
		OnFragment: func(text string) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.fragments = append(e.fragments, text)
		},
		OnFlush: func(s string) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.flushes = append(e.flushes, s)
		},
		OnError: func(err error) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.errs = append(e.errs, err)
		},
		OnComplete: func(final string) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.completed = append(e.completed, final)
		},
	}
}

func (e *events) total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fragments) + len(e.flushes) + len(e.errs) + len(e.completed)
}

func TestIngestor_Completes(t *testing.T) {
	src := &chunkSource{chunks: [][]byte{
		[]byte("Привет, "),
		[]byte("мир \xf0\x9f"),
		[]byte("\x93\x84"),
	}}
	ev := &events{}
	in := NewIngestor(WithClock(&manualClock{}))

	err := in.Run(context.Background(), src, ev.callbacks())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, in.State())
	assert.Equal(t, []string{"Привет, ", "мир ", "📄"}, ev.fragments)
	assert.Equal(t, []string{"Привет, мир 📄"}, ev.flushes, "end of stream forces one flush")
	assert.Equal(t, []string{"Привет, мир 📄"}, ev.completed)
	assert.Empty(t, ev.errs)
	assert.True(t, src.isClosed())
}

func TestIngestor_TransportFailureCarriesPartialText(t *testing.T) {
	boom := errors.New("connection reset")
	src := &chunkSource{chunks: [][]byte{[]byte("half an ans")}, err: boom}
	ev := &events{}
	in := NewIngestor(WithClock(&manualClock{}))

	err := in.Run(context.Background(), src, ev.callbacks())

	var perr *PartialError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "half an ans", perr.Partial)
	assert.Equal(t, StateFailed, in.State())

	require.Len(t, ev.errs, 1)
	assert.Empty(t, ev.completed)
	assert.Empty(t, ev.flushes, "a failed stream is not flushed")
}

func TestIngestor_ContextDeadlineIsAFailure(t *testing.T) {
	src := newPipeSource()
	ev := &events{}
	in := NewIngestor()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	go func() {
		src.ch <- []byte("slow")
		<-src.closed
		close(src.ch)
	}()

	// The pipe reports EOF once closed, so make the read error explicit.
	wrapped := &closeErrSource{pipe: src}
	err := in.Run(ctx, wrapped, ev.callbacks())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, ev.errs, 1)
	var perr *PartialError
	require.ErrorAs(t, ev.errs[0], &perr)
	assert.Equal(t, "slow", perr.Partial)
}

// closeErrSource turns reads after Close into errors, like an HTTP body.
type closeErrSource struct {
	pipe *pipeSource
}

func (s *closeErrSource) Read(p []byte) (int, error) {
	n, err := s.pipe.Read(p)
	select {
	case <-s.pipe.closed:
		if n == 0 {
			return 0, errors.New("read on closed body")
		}
	default:
	}
	return n, err
}

func (s *closeErrSource) Close() error { return s.pipe.Close() }

func TestIngestor_CancelSuppressesCallbacks(t *testing.T) {
	src := newPipeSource()
	clock := &manualClock{}
	ev := &events{}
	in := NewIngestor(WithClock(clock))

	done := make(chan error, 1)
	go func() {
		done <- in.Run(context.Background(), src, ev.callbacks())
	}()

	src.ch <- []byte("first ")
	require.Eventually(t, func() bool { return ev.total() == 1 }, time.Second, time.Millisecond)

	require.True(t, in.Cancel())
	before := ev.total()

	// fragments keep arriving after the cancel
	src.ch <- []byte("second ")
	clock.Advance(time.Second)

	err := <-done
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, StateCancelled, in.State())
	assert.Equal(t, before, ev.total(), "no callback may run after Cancel")
	assert.Empty(t, ev.completed)
	assert.Empty(t, ev.errs)
	assert.Equal(t, 0, clock.Active(), "pending flush is cleared")
	assert.False(t, in.Cancel(), "second cancel is a no-op")
}

func TestIngestor_CancelBeforeRun(t *testing.T) {
	src := &chunkSource{chunks: [][]byte{[]byte("x")}}
	ev := &events{}
	in := NewIngestor()

	require.True(t, in.Cancel())
	err := in.Run(context.Background(), src, ev.callbacks())

	assert.ErrorIs(t, err, ErrCancelled)
	assert.Zero(t, ev.total())
	assert.True(t, src.isClosed())
}

func TestIngestor_RunTwice(t *testing.T) {
	in := NewIngestor()
	require.NoError(t, in.Run(context.Background(), io.NopCloser(strings.NewReader("a")), Callbacks{}))

	err := in.Run(context.Background(), io.NopCloser(strings.NewReader("b")), Callbacks{})
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.False(t, in.Cancel())
}

func TestIngestor_OneByteReads(t *testing.T) {
	text := "Ответ: **жирный** текст 📄"
	ev := &events{}
	in := NewIngestor(WithClock(&manualClock{}))

	src := io.NopCloser(iotest.OneByteReader(strings.NewReader(text)))
	require.NoError(t, in.Run(context.Background(), src, ev.callbacks()))

	assert.Equal(t, text, strings.Join(ev.fragments, ""))
	assert.Equal(t, []string{text}, ev.completed)
}

func TestIngestor_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	src := &chunkSource{err: errors.New("EOF too soon")}
	in := NewIngestor(WithLogger(zap.New(core)), WithClock(&manualClock{}))

	_ = in.Run(context.Background(), src, Callbacks{})

	assert.Equal(t, 1, logs.FilterMessage("stream failed").Len())
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateReading, "reading"},
		{StateCompleted, "completed"},
		{StateFailed, "failed"},
		{StateCancelled, "cancelled"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
