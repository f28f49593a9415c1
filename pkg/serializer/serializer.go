// Package serializer implements the named, single-consumer FIFO task queues
// ("serializers") that the distributor dispatches work onto, plus the
// process-wide overload signal and fixed fallback pool built on top of them.
package serializer

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Task is a unit of work run, in enqueue order, by a serializer's single
// worker goroutine.
type Task func()

// Registry tracks, process-wide, how many serializers currently have a queue
// depth at or above their high-water mark. Its Alert() method reports a
// single coarse, global overload signal rather than a per-serializer one.
type Registry struct {
	mu       sync.Mutex
	count    int
	onChange func(alert bool)
}

// NewRegistry creates an empty overload registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// OnAlertChange installs a hook invoked whenever the overload signal
// transitions between set and clear. Install it before any serializer is
// created through the registry; the hook runs outside the registry's lock.
func (r *Registry) OnAlertChange(fn func(alert bool)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Alert reports whether at least one tracked serializer is at or above its
// high-water mark.
func (r *Registry) Alert() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count > 0
}

func (r *Registry) noteOverloaded() {
	r.mu.Lock()
	r.count++
	fire := r.count == 1
	fn := r.onChange
	r.mu.Unlock()
	if fire && fn != nil {
		fn(true)
	}
}

func (r *Registry) noteRecovered() {
	r.mu.Lock()
	fire := false
	if r.count > 0 {
		r.count--
		fire = r.count == 0
	}
	fn := r.onChange
	r.mu.Unlock()
	if fire && fn != nil {
		fn(false)
	}
}

// Serializer is a named, reference-counted, single-consumer FIFO queue.
// Tasks pushed onto it run strictly in enqueue order on one worker goroutine
// drawn for the lifetime of the serializer, mirroring Asterisk's
// ast_taskprocessor bound to a shared thread pool.
type Serializer struct {
	name          string
	highWaterMark int
	logger        *logrus.Logger
	registry      *Registry
	onLastRelease func(name string)

	mu         sync.Mutex
	cond       *sync.Cond
	queue      []Task
	closed     bool
	overloaded bool

	refs int32
}

func newSerializer(name string, highWaterMark int, reg *Registry, logger *logrus.Logger, onLastRelease func(string)) *Serializer {
	s := &Serializer{
		name:          name,
		highWaterMark: highWaterMark,
		logger:        logger,
		registry:      reg,
		onLastRelease: onLastRelease,
		refs:          1,
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Name returns the serializer's stable, process-unique name.
func (s *Serializer) Name() string {
	return s.name
}

// Depth returns the current queue length.
func (s *Serializer) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Retain bumps the serializer's reference count. Every caller that obtains a
// *Serializer (by name lookup or pool bump) owns one reference and must call
// Release exactly once.
func (s *Serializer) Retain() *Serializer {
	atomic.AddInt32(&s.refs, 1)
	return s
}

// Release drops a reference. When the last reference is dropped the
// serializer stops accepting new tasks, drains what is already queued, and
// removes itself from any directory it was registered in.
func (s *Serializer) Release() {
	if atomic.AddInt32(&s.refs, -1) > 0 {
		return
	}

	s.mu.Lock()
	s.closed = true
	if s.overloaded {
		s.overloaded = false
		s.registry.noteRecovered()
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	if s.onLastRelease != nil {
		s.onLastRelease(s.name)
	}
}

// Push enqueues a task. It returns false if the serializer has already been
// released and can no longer accept work.
func (s *Serializer) Push(t Task) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, t)
	depth := len(s.queue)
	if !s.overloaded && s.highWaterMark > 0 && depth >= s.highWaterMark {
		s.overloaded = true
		s.registry.noteOverloaded()
	}
	s.cond.Signal()
	s.mu.Unlock()
	return true
}

func (s *Serializer) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		depth := len(s.queue)
		if s.overloaded && depth < s.highWaterMark {
			s.overloaded = false
			s.registry.noteRecovered()
		}
		s.mu.Unlock()

		s.safeRun(task)
	}
}

func (s *Serializer) safeRun(task Task) {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.WithFields(logrus.Fields{
				"serializer": s.name,
				"panic":      r,
			}).Error("Recovered from panic in serializer task")
		}
	}()
	task()
}
