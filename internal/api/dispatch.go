package api

import (
	"context"
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/jward/automaple/internal/cancel"
	"github.com/jward/automaple/internal/intercept"
	"github.com/jward/automaple/internal/logging"
	"github.com/jward/automaple/internal/marshal"
)

// CallHook observes every native invocation before it runs.
type CallHook func(line int, name string)

// Dispatcher turns registry entries into Lua functions. One generic host
// function serves every descriptor.
type Dispatcher struct {
	reg    *Registry
	flag   *cancel.Flag
	guard  marshal.Guard
	logger *logging.Logger
	onCall CallHook
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchLogger sets the logger that receives the per-call log line.
func WithDispatchLogger(l *logging.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithCallHook registers fn to be told about every call.
func WithCallHook(fn CallHook) DispatcherOption {
	return func(d *Dispatcher) {
		d.onCall = fn
	}
}

// NewDispatcher returns a dispatcher over reg. guard is applied to every
// table a native returns.
func NewDispatcher(reg *Registry, flag *cancel.Flag, guard marshal.Guard, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		reg:    reg,
		flag:   flag,
		guard:  guard,
		logger: logging.Discard(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// FormatCallLine renders the log line written for each native call.
func FormatCallLine(line int, name string) string {
	return fmt.Sprintf("%d: %s", line, name)
}

// Install registers every descriptor as a function field of ns.
func (d *Dispatcher) Install(L *lua.LState, ns *lua.LTable) {
	for _, desc := range d.reg.descs {
		ns.RawSetString(desc.Name, L.NewFunction(d.bind(desc)))
	}
}

func (d *Dispatcher) bind(desc Descriptor) lua.LGFunction {
	return func(L *lua.LState) int {
		line := intercept.CurrentLine(L, 1)
		d.logger.Debug(FormatCallLine(line, desc.Name))
		if d.onCall != nil {
			d.onCall(line, desc.Name)
		}

		if err := d.flag.Checkpoint(); err != nil {
			return raise(L, err.Error())
		}

		args := make([]any, len(desc.Args))
		for i, shape := range desc.Args {
			v, err := shape.DecodeAny(L.Get(i + 1))
			if err != nil {
				return raise(L, fmt.Sprintf("%s: %v", desc.Name, marshal.Within(err, fmt.Sprintf("#%d", i+1))))
			}
			args[i] = v
		}

		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ret, err := desc.Call(ctx, args)
		if err != nil {
			if errors.Is(err, cancel.ErrCancelled) || errors.Is(err, context.Canceled) {
				d.flag.Set()
				return raise(L, cancel.ErrCancelled.Error())
			}
			return raise(L, fmt.Sprintf("%s: %v", desc.Name, err))
		}
		if desc.Returns == nil {
			return 0
		}
		lv, err := desc.Returns.EncodeAny(marshal.NewEnv(L, d.guard), ret)
		if err != nil {
			return raise(L, fmt.Sprintf("%s: %v", desc.Name, err))
		}
		L.Push(lv)
		return 1
	}
}

// raise unwinds the script with msg. It does not return.
func raise(L *lua.LState, msg string) int {
	L.RaiseError("%s", msg)
	return 0
}
