package automaple

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jward/automaple/internal/api"
	"github.com/jward/automaple/internal/cancel"
	"github.com/jward/automaple/internal/intercept"
	"github.com/jward/automaple/internal/logging"
	"github.com/jward/automaple/internal/runtime"
	"github.com/jward/automaple/internal/store"
)

// DefaultPollInterval is how often Run and RequestCancel look at the session
// state while waiting for Idle.
const DefaultPollInterval = 50 * time.Millisecond

// State is the session lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateRunning
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeErrored   Outcome = "errored"
	OutcomeCancelled Outcome = "cancelled"
)

// Script is a named chunk of source.
type Script struct {
	Name   string
	Source string
}

// Result describes a finished session.
type Result struct {
	SessionID string
	Script    string
	Outcome   Outcome
	// Err is a *ScriptLoadError or *UnhandledScriptError when Outcome is
	// OutcomeErrored, and an *UndefinedAccessError when a cancelled session
	// was stopped by the access interceptor.
	Err        error
	Diagnostic *Diagnostic
	Calls      int
	StartedAt  time.Time
	EndedAt    time.Time
}

// Duration is the session's run time.
func (r *Result) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Active describes the session currently holding the controller.
type Active struct {
	SessionID string
	Script    string
	State     State
	StartedAt time.Time
}

// EventType names a lifecycle event.
type EventType string

const (
	EventStarted    EventType = "started"
	EventDiagnostic EventType = "diagnostic"
	EventEnded      EventType = "ended"
)

// Event is published to the event hook as sessions progress.
type Event struct {
	Type       EventType
	SessionID  string
	Script     string
	Diagnostic *Diagnostic
	Result     *Result
}

// Controller owns the single script session. Run executes a script on the
// caller's goroutine; RequestCancel stops it from any other goroutine.
type Controller struct {
	primitives api.Primitives
	notifier   api.Notifier
	runtime    *runtime.Runtime
	logger     *logging.Logger
	journal    store.Journal
	onEvent    func(Event)

	pollInterval time.Duration
	sleepPoll    time.Duration
	preempt      bool

	flag cancel.Flag

	mu     sync.Mutex
	state  State
	active *Active
	ended  uint64 // sessions released so far
}

// Option configures a Controller.
type Option func(*Controller)

// WithRuntime sets the runtime sessions are built with.
func WithRuntime(rt *runtime.Runtime) Option {
	return func(c *Controller) {
		if rt != nil {
			c.runtime = rt
		}
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithJournal records sessions, calls and diagnostics to j.
func WithJournal(j store.Journal) Option {
	return func(c *Controller) {
		c.journal = j
	}
}

// WithEventHook registers fn to receive lifecycle events. fn runs on the
// session goroutine and must not block.
func WithEventHook(fn func(Event)) Option {
	return func(c *Controller) {
		c.onEvent = fn
	}
}

// WithPollInterval sets the bounded sleep between state checks while waiting.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithSleepPoll sets how often script-level Sleep/Wait look at the flag.
func WithSleepPoll(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.sleepPoll = d
		}
	}
}

// WithPreempt makes Run cancel a running session instead of waiting for it.
// A preempting Run issued while a cancellation is already in flight fails
// with ErrCancelInProgress.
func WithPreempt(preempt bool) Option {
	return func(c *Controller) {
		c.preempt = preempt
	}
}

// New creates a Controller driving p and reporting to n.
func New(p api.Primitives, n api.Notifier, opts ...Option) *Controller {
	c := &Controller{
		primitives:   p,
		notifier:     n,
		runtime:      runtime.NewRuntime(""),
		logger:       logging.Discard(),
		pollInterval: DefaultPollInterval,
		sleepPoll:    api.DefaultSleepPoll,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry builds the operation table sessions expose. It is rebuilt for
// every session.
func (c *Controller) Registry() (*api.Registry, error) {
	return api.NewRegistry(api.Builtins(api.Deps{
		Primitives: c.primitives,
		Notifier:   c.notifier,
		Flag:       &c.flag,
		Logger:     c.logger.With("component", "script"),
		SleepPoll:  c.sleepPoll,
	})...)
}

// Namespace is the global table name scripts use for the API.
func (c *Controller) Namespace() string {
	return c.runtime.Namespace()
}

// State reports the lifecycle phase. A running session whose flag has been
// raised is reported as terminating.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	if c.state == StateRunning && c.flag.IsSet() {
		return StateTerminating
	}
	return c.state
}

// Active returns the current session, or nil when idle.
func (c *Controller) Active() *Active {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	a := *c.active
	a.State = c.stateLocked()
	return &a
}

// LoadScript reads a script through the runtime's script source.
func (c *Controller) LoadScript(path string) (Script, error) {
	src, err := c.runtime.LoadScript(path)
	if err != nil {
		return Script{}, err
	}
	return Script{Name: path, Source: src}, nil
}

// Run executes s to completion, failure or cancellation and reports how it
// ended. It first waits, polling, for the controller to be idle. The error
// is non-nil only when the session could not start: ctx ended while waiting,
// or a preempting start met a cancellation in flight.
func (c *Controller) Run(ctx context.Context, s Script) (*Result, error) {
	if err := c.acquire(ctx, s.Name); err != nil {
		return nil, err
	}
	res := c.session(ctx, s)
	c.emit(Event{Type: EventEnded, SessionID: res.SessionID, Script: res.Script, Result: res})
	c.release()
	return res, nil
}

// RequestCancel stops the current session and blocks until it has been torn
// down. It returns immediately when nothing is running.
func (c *Controller) RequestCancel(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return nil
	}
	gen := c.ended
	c.cancelLocked()
	c.mu.Unlock()
	c.primitives.Interrupt()
	return c.waitEnded(ctx, gen)
}

// cancelLocked raises the flag and marks the session terminating.
func (c *Controller) cancelLocked() {
	c.state = StateTerminating
	c.flag.Set()
	c.logger.Info("cancellation requested", "session", c.activeIDLocked())
}

func (c *Controller) activeIDLocked() string {
	if c.active == nil {
		return ""
	}
	return c.active.SessionID
}

func (c *Controller) acquire(ctx context.Context, script string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	preempted := false
	for {
		c.mu.Lock()
		st := c.stateLocked()
		if st == StateIdle {
			c.flag.Clear()
			c.state = StateLoading
			c.active = &Active{
				SessionID: uuid.NewString(),
				Script:    script,
				StartedAt: time.Now().UTC(),
			}
			c.mu.Unlock()
			return nil
		}
		switch {
		case !c.preempt || preempted:
			c.mu.Unlock()
		case c.flag.IsSet():
			c.mu.Unlock()
			return ErrCancelInProgress
		case st == StateTerminating:
			// Ending on its own; wait for Idle.
			c.mu.Unlock()
		default:
			c.cancelLocked()
			preempted = true
			c.mu.Unlock()
			c.primitives.Interrupt()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Controller) release() {
	c.mu.Lock()
	c.state = StateIdle
	c.active = nil
	c.ended++
	c.flag.Clear()
	c.mu.Unlock()
}

// waitEnded polls until the session running at generation gen is released.
// A session started right after it does not extend the wait.
func (c *Controller) waitEnded(ctx context.Context, gen uint64) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		c.mu.Lock()
		done := c.ended != gen
		c.mu.Unlock()
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// enterRunning moves Loading to Running. A cancellation that arrived during
// loading keeps the state at Terminating.
func (c *Controller) enterRunning() {
	c.mu.Lock()
	if c.state == StateLoading {
		c.state = StateRunning
	}
	c.mu.Unlock()
}

func (c *Controller) emit(e Event) {
	if c.onEvent != nil {
		c.onEvent(e)
	}
}

// session runs one script between acquire and release.
func (c *Controller) session(ctx context.Context, s Script) *Result {
	a := c.Active()
	res := &Result{SessionID: a.SessionID, Script: s.Name, StartedAt: a.StartedAt}
	logger := c.logger.With("session", res.SessionID, "script", s.Name)
	j := newJournalWriter(c.journal, logger, res.SessionID)

	j.begin(s)
	c.emit(Event{Type: EventStarted, SessionID: res.SessionID, Script: s.Name})
	logger.Info("session started")

	c.primitives.Reset()
	defer c.primitives.Reset()

	sessCtx := c.flag.Arm(ctx)

	proto, err := runtime.Compile(s.Source, s.Name)
	if err != nil {
		msg := loadMessage(err)
		c.notifier.Notify(msg)
		return c.finish(res, j, logger, OutcomeErrored, &ScriptLoadError{Script: s.Name, Message: msg, Err: err})
	}

	reg, err := c.Registry()
	if err != nil {
		return c.finish(res, j, logger, OutcomeErrored, &UnhandledScriptError{Script: s.Name, Message: err.Error(), Err: err})
	}

	ic := intercept.New(&c.flag, c.notifier,
		intercept.WithLogger(logger),
		intercept.WithDiagnosticHook(func(d intercept.Diagnostic) {
			res.Diagnostic = &d
			j.diagnostic(d)
			c.emit(Event{Type: EventDiagnostic, SessionID: res.SessionID, Script: s.Name, Diagnostic: &d})
		}),
	)

	L := c.runtime.NewState(sessCtx, runtime.Bindings{
		Registry:    reg,
		Flag:        &c.flag,
		Interceptor: ic,
		Dispatch: []api.DispatcherOption{
			api.WithDispatchLogger(logger),
			api.WithCallHook(func(line int, name string) {
				res.Calls++
				j.call(line, name)
			}),
		},
	})
	defer L.Close()

	c.enterRunning()
	err = runtime.Exec(L, proto)

	switch {
	case err == nil:
		return c.finish(res, j, logger, OutcomeCompleted, nil)
	case c.flag.IsSet() || ctx.Err() != nil:
		if res.Diagnostic != nil {
			return c.finish(res, j, logger, OutcomeCancelled, &UndefinedAccessError{Diagnostic: *res.Diagnostic})
		}
		return c.finish(res, j, logger, OutcomeCancelled, nil)
	default:
		msg := scriptMessage(err)
		c.notifier.Notify(msg)
		return c.finish(res, j, logger, OutcomeErrored, &UnhandledScriptError{Script: s.Name, Message: msg, Err: err})
	}
}

func (c *Controller) finish(res *Result, j *journalWriter, logger *logging.Logger, outcome Outcome, err error) *Result {
	c.mu.Lock()
	c.state = StateTerminating
	c.mu.Unlock()

	res.Outcome = outcome
	res.Err = err
	res.EndedAt = time.Now().UTC()

	var errText string
	if err != nil {
		errText = err.Error()
	}
	j.end(outcome, errText, res.EndedAt)

	attrs := []any{"outcome", outcome, "calls", res.Calls, "duration", res.Duration()}
	var loadErr *ScriptLoadError
	switch {
	case outcome == OutcomeErrored && errors.As(err, &loadErr):
		logger.Error("script failed to load", append(attrs, "error", loadErr.Message)...)
	case outcome == OutcomeErrored:
		logger.Error("session failed", append(attrs, "error", errText)...)
	default:
		logger.Info("session ended", attrs...)
	}
	return res
}
