// Package debounce buffers rapid input changes and commits them after an
// idle period.
//
// An Input holds two values: the buffered value the user is editing and the
// value last committed downstream. Set re-arms the idle timer on every call;
// only the last value survives to the commit.
package debounce

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Options configures an Input
type Options struct {
	Name      string
	Delay     time.Duration
	MinLength int // shorter values commit as ""
	Clock     Clock
	Logger    *zap.Logger
}

// Input is a debounced text field
type Input struct {
	mu        sync.Mutex
	buffered  string
	committed string
	timer     Timer
	gen       uint64

	name      string
	delay     time.Duration
	minLength int
	clock     Clock
	commit    func(string)
	logger    *zap.Logger
}

// New creates an Input that calls commit with each committed value
func New(initial string, commit func(string), opts Options) *Input {
	if opts.Clock == nil {
		opts.Clock = RealClock
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Input{
		buffered:  initial,
		committed: initial,
		name:      opts.Name,
		delay:     opts.Delay,
		minLength: opts.MinLength,
		clock:     opts.Clock,
		commit:    commit,
		logger:    opts.Logger,
	}
}

// Set buffers v and schedules a commit after the idle delay
func (in *Input) Set(v string) {
	in.mu.Lock()
	in.buffered = v
	in.cancelLocked()
	gen := in.gen
	if in.delay <= 0 {
		in.mu.Unlock()
		in.fire(gen)
		return
	}
	in.timer = in.clock.AfterFunc(in.delay, func() { in.fire(gen) })
	in.mu.Unlock()
}

// Clear empties the buffer and commits "" immediately
func (in *Input) Clear() {
	in.mu.Lock()
	in.buffered = ""
	in.cancelLocked()
	in.mu.Unlock()

	in.commitValue("")
}

// Flush commits a pending value now
func (in *Input) Flush() {
	in.mu.Lock()
	if in.timer == nil {
		in.mu.Unlock()
		return
	}
	in.cancelLocked()
	gen := in.gen
	in.mu.Unlock()

	in.fire(gen)
}

// Sync adopts an externally committed value, dropping any pending edit
func (in *Input) Sync(v string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if v == in.committed && in.timer == nil {
		return
	}
	in.cancelLocked()
	in.buffered = v
	in.committed = v
}

// Stop cancels a pending commit
func (in *Input) Stop() {
	in.mu.Lock()
	in.cancelLocked()
	in.mu.Unlock()
}

// Buffered is the value currently being edited
func (in *Input) Buffered() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.buffered
}

// Committed is the value last handed downstream
func (in *Input) Committed() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.committed
}

// Pending reports whether a commit is scheduled
func (in *Input) Pending() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.timer != nil
}

// cancelLocked stops the armed timer; bumping gen makes a timer that already
// fired but has not yet taken the lock a no-op.
func (in *Input) cancelLocked() {
	if in.timer != nil {
		in.timer.Stop()
		in.timer = nil
	}
	in.gen++
}

func (in *Input) fire(gen uint64) {
	in.mu.Lock()
	if gen != in.gen {
		in.mu.Unlock()
		return
	}
	in.timer = nil
	value := in.buffered
	in.mu.Unlock()

	in.commitValue(in.applyMinLength(value))
}

func (in *Input) applyMinLength(v string) string {
	trimmed := strings.TrimSpace(v)
	if utf8.RuneCountInString(trimmed) < in.minLength {
		return ""
	}
	return trimmed
}

func (in *Input) commitValue(v string) {
	in.mu.Lock()
	if v == in.committed {
		in.mu.Unlock()
		return
	}
	in.committed = v
	in.mu.Unlock()

	in.logger.Debug("Committing debounced input",
		zap.String("input", in.name),
		zap.String("value", v),
	)
	if in.commit != nil {
		in.commit(v)
	}
}
