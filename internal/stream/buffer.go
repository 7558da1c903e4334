package stream

import (
	"strings"
	"sync"
	"time"
)

// DefaultThrottle bounds how often an in-progress answer is repainted.
const DefaultThrottle = 100 * time.Millisecond

// Observer receives a copy of the accumulated text.
type Observer func(snapshot string)

// Buffer accumulates decoded fragments and hands snapshots to its observer
// at most once per interval. Snapshots only ever grow: each one has the
// previous one as a prefix.
//
// The observer runs with the emit lock held. It may call Append but must
// not call Flush, ForceFlush or Stop.
type Buffer struct {
	interval time.Duration
	clock    Clock
	observe  Observer

	mu      sync.Mutex
	text    strings.Builder
	pending Timer
	token   uint64
	sealed  bool

	emitMu sync.Mutex
}

// NewBuffer returns a buffer publishing to observe. A zero interval means
// DefaultThrottle; a nil clock means SystemClock.
func NewBuffer(interval time.Duration, clock Clock, observe Observer) *Buffer {
	if interval <= 0 {
		interval = DefaultThrottle
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Buffer{interval: interval, clock: clock, observe: observe}
}

// Append adds a fragment and schedules a flush unless one is pending.
func (b *Buffer) Append(fragment string) {
	if fragment == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return
	}
	b.text.WriteString(fragment)
	if b.pending != nil {
		return
	}
	tok := b.token
	b.pending = b.clock.AfterFunc(b.interval, func() {
		b.publish(tok, false)
	})
}

// Flush publishes the current text now and clears the pending flush.
func (b *Buffer) Flush() {
	b.mu.Lock()
	tok := b.token
	b.mu.Unlock()
	b.publish(tok, false)
}

// ForceFlush cancels any pending flush, publishes the final text and seals
// the buffer. It returns the final text and whether this call sealed it.
func (b *Buffer) ForceFlush() (string, bool) {
	b.mu.Lock()
	tok := b.token
	b.mu.Unlock()
	return b.publish(tok, true)
}

// Stop cancels any pending flush and invalidates the stream token without
// publishing. Flushes already in flight see the new token and do nothing.
func (b *Buffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token++
	b.sealed = true
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
}

// Snapshot returns the accumulated text without publishing it.
func (b *Buffer) Snapshot() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text.String()
}

// Pending reports whether a flush is scheduled.
func (b *Buffer) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending != nil
}

// Sealed reports whether the buffer was force-flushed or stopped.
func (b *Buffer) Sealed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sealed
}

func (b *Buffer) publish(tok uint64, seal bool) (string, bool) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	if tok != b.token || b.sealed {
		b.mu.Unlock()
		return "", false
	}
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
	if seal {
		b.sealed = true
	}
	snapshot := b.text.String()
	b.mu.Unlock()

	if b.observe != nil {
		b.observe(snapshot)
	}
	return snapshot, true
}
