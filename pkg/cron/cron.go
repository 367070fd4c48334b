package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/beryllium-dev/beryllium/pkg/cron"

var (
	// ErrInvalidLifecycle is returned when a method is called in a state
	// that does not allow it. It signals a programming error.
	ErrInvalidLifecycle = errors.New("cron: invalid lifecycle call")

	// ErrInvalidTask is returned for a nil task or a non-positive interval.
	ErrInvalidTask = errors.New("cron: invalid task")
)

// State is the lifecycle state of a Scheduler.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateStopping
	StateStopped
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Task is a zero-argument action run by the scheduler.
type Task func()

// Scheduler runs registered tasks on its own goroutine.
//
// Every task re-arms for another interval after each run completes, so the
// schedule drifts by the task's own runtime. Runs never overlap.
//
// The lifecycle is Created -> Running (Start) -> Stopping (Stop) ->
// Stopped (observed by Join) -> Closed (Close).
type Scheduler struct {
	mu     sync.Mutex
	state  State
	timers map[*timerTask]*time.Timer
	ready  *queue.Queue

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

type timerTask struct {
	name     string
	task     Task
	interval time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records task runs in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithTracerProvider sets the provider used for per-run spans.
// Default: the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Scheduler) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// New creates a scheduler in the Created state.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		timers: make(map[*timerTask]*time.Timer),
		ready:  queue.New(),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "cron")
	return s
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) lifecycleError(op string) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidLifecycle, op, s.state)
}

// AddTimerTask registers task to run once interval has elapsed and then
// again interval after each run completes. name labels logs, spans and
// metrics. Tasks may be added while Created or Running.
func (s *Scheduler) AddTimerTask(name string, task Task, interval time.Duration) error {
	if task == nil || interval <= 0 {
		return fmt.Errorf("%w: %q interval=%s", ErrInvalidTask, name, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCreated && s.state != StateRunning {
		return s.lifecycleError("add timer task")
	}

	tt := &timerTask{name: name, task: task, interval: interval}
	s.timers[tt] = time.AfterFunc(interval, func() { s.enqueue(tt) })

	s.logger.Debug("timer task added", "task", name, "interval", interval)
	return nil
}

// Start launches the worker goroutine.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCreated {
		return s.lifecycleError("start")
	}
	s.state = StateRunning
	go s.run()

	s.logger.Debug("scheduler started", "tasks", len(s.timers))
	return nil
}

// Stop asks the worker to exit and returns immediately. A task that is
// already running finishes; nothing runs after it. Use Join to wait.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return s.lifecycleError("stop")
	}
	s.state = StateStopping
	close(s.quit)
	return nil
}

// Join blocks until the worker goroutine has exited. It may be called while
// Running (waiting for some other caller's Stop) and repeatedly once Stopped.
func (s *Scheduler) Join() error {
	s.mu.Lock()
	switch s.state {
	case StateRunning, StateStopping, StateStopped:
	default:
		err := s.lifecycleError("join")
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	<-s.done

	s.mu.Lock()
	if s.state == StateStopping {
		s.state = StateStopped
		s.logger.Debug("scheduler stopped")
	}
	s.mu.Unlock()
	return nil
}

// Close stops every timer and drops queued runs. It must follow Join.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return s.lifecycleError("close")
	}
	for tt, timer := range s.timers {
		timer.Stop()
		delete(s.timers, tt)
	}
	for s.ready.Length() > 0 {
		s.ready.Remove()
	}
	s.state = StateClosed
	return nil
}

// enqueue is the timer callback. Runs queued after Stop are dropped.
func (s *Scheduler) enqueue(tt *timerTask) {
	s.mu.Lock()
	if s.state != StateCreated && s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.ready.Add(tt)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest ready task, or returns nil.
func (s *Scheduler) next() *timerTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready.Length() == 0 {
		return nil
	}
	return s.ready.Remove().(*timerTask)
}

func (s *Scheduler) run() {
	defer close(s.done)

	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}

		for tt := s.next(); tt != nil; tt = s.next() {
			select {
			case <-s.quit:
				return
			default:
			}
			s.execute(tt)
			s.rearm(tt)
		}
	}
}

// rearm schedules the next run interval after the one that just finished.
func (s *Scheduler) rearm(tt *timerTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return
	}
	if timer, ok := s.timers[tt]; ok {
		timer.Reset(tt.interval)
	}
}

// execute runs one task, recovering panics so the task keeps its schedule.
func (s *Scheduler) execute(tt *timerTask) {
	_, span := s.tracer.Start(context.Background(), "cron.task",
		trace.WithAttributes(
			attribute.String("cron.task", tt.name),
			attribute.String("cron.interval", tt.interval.String()),
		))
	defer span.End()

	start := time.Now()
	panicked := false
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			s.logger.Error("timer task panicked",
				"task", tt.name,
				"panic", r,
				"stack", string(debug.Stack()))
			span.SetStatus(codes.Error, fmt.Sprint(r))
		}
		s.metrics.recordRun(tt.name, time.Since(start), panicked)
	}()

	tt.task()
}
