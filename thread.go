package display

import (
	"sync"
	"sync/atomic"
)

// Thread is the render thread execution context. All allocation, clearing
// and swap chain operations run on its goroutine; contexts created with a
// Thread check it on every mutating call.
//
// A nil *Thread disables the check, which is how standalone contexts used
// from a single goroutine (tools, tests) opt out.
type Thread struct {
	name string
	work chan func()
	quit chan struct{}
	done chan struct{}

	once sync.Once

	// inside is non-zero while the render goroutine executes a closure.
	inside atomic.Int32
}

// NewThread starts a render thread goroutine.
func NewThread(name string) *Thread {
	t := &Thread{
		name: name,
		work: make(chan func()),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go t.loop()
	return t
}

func (t *Thread) loop() {
	defer close(t.done)
	for {
		select {
		case fn := <-t.work:
			t.inside.Add(1)
			fn()
			t.inside.Add(-1)
		case <-t.quit:
			return
		}
	}
}

// Name returns the thread name used in log records.
func (t *Thread) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Do runs fn on the render goroutine and waits for it to return.
// Like sync.Mutex, Do is not reentrant: calling it from inside fn deadlocks.
func (t *Thread) Do(fn func()) error {
	finished := make(chan struct{})
	select {
	case t.work <- func() { defer close(finished); fn() }:
	case <-t.quit:
		return ErrThreadStopped
	}
	<-finished
	return nil
}

// IsCurrent reports whether the render goroutine is executing a closure.
// It does not identify the calling goroutine, so it is a debugging aid for
// misplaced calls rather than a synchronization primitive.
// A nil Thread is always current.
func (t *Thread) IsCurrent() bool {
	if t == nil {
		return true
	}
	return t.inside.Load() > 0
}

// Close stops the render goroutine. Pending Do calls return ErrThreadStopped.
func (t *Thread) Close() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.quit) })
	<-t.done
}

// check asserts that op runs on the render thread.
func (t *Thread) check(op string) error {
	if assertf(t.IsCurrent(), "%s called outside render thread %q", op, t.Name()) {
		return nil
	}
	return ErrWrongThread
}
