// Package intercept guards script tables against references to undefined
// fields.
//
// A guarded table answers a missing key with a diagnostic instead of nil:
// the diagnostic carries the key, a hint naming the namespace that was
// searched and the current script line. It is delivered to the notifier and
// the session is forced to stop, since the script cannot meaningfully continue
// with an ambiguous value.
package intercept

import (
	"fmt"
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"github.com/jward/automaple/internal/cancel"
	"github.com/jward/automaple/internal/logging"
)

// DiagnosticPrefix starts every undefined-access message.
const DiagnosticPrefix = "Error! The following does not exist"

// Hints qualifying where the lookup happened.
const (
	HintDefault = ": "
	HintGlobal  = " in global: "
)

// NamespaceHint returns the hint for the API namespace ns.
func NamespaceHint(ns string) string {
	return " in " + ns + ": "
}

// Notifier surfaces a message to the user.
type Notifier interface {
	Notify(msg string)
}

// Diagnostic describes one trapped undefined access.
type Diagnostic struct {
	Hint    string
	Key     string
	Line    int
	Message string
}

// FormatDiagnostic renders the user-facing message for an undefined access.
func FormatDiagnostic(hint, key string, line int) string {
	return DiagnosticPrefix + hint + key + "\nLine: " + strconv.Itoa(line)
}

// Interceptor installs guarded lookups on tables of one session.
type Interceptor struct {
	flag     *cancel.Flag
	notifier Notifier
	logger   *logging.Logger
	onDiag   func(Diagnostic)
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithLogger sets the logger diagnostics are written to.
func WithLogger(l *logging.Logger) Option {
	return func(i *Interceptor) {
		i.logger = l
	}
}

// WithDiagnosticHook registers fn to receive every diagnostic, after the
// notifier and before the flag is raised.
func WithDiagnosticHook(fn func(Diagnostic)) Option {
	return func(i *Interceptor) {
		i.onDiag = fn
	}
}

// New creates an Interceptor that raises flag on every trap.
func New(flag *cancel.Flag, n Notifier, opts ...Option) *Interceptor {
	i := &Interceptor{
		flag:     flag,
		notifier: n,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Lookup is the guarded read: it reports whether key is present in t
// instead of collapsing "absent" into nil.
func Lookup(t *lua.LTable, key lua.LValue) (lua.LValue, bool) {
	v := t.RawGet(key)
	return v, v != lua.LNil
}

// Install protects t. Misses are trapped with hint.
func (i *Interceptor) Install(L *lua.LState, t *lua.LTable, hint string) {
	mt := L.CreateTable(0, 1)
	mt.RawSetString("__index", L.NewFunction(func(L *lua.LState) int {
		tbl, ok := L.Get(1).(*lua.LTable)
		key := L.Get(2)
		if ok {
			if v, found := Lookup(tbl, key); found {
				L.Push(v)
				return 1
			}
		}
		i.Trap(L, hint, key)
		L.Push(lua.LNil)
		return 1
	}))
	L.SetMetatable(t, mt)
}

// Guard protects a table produced by the marshaling layer.
func (i *Interceptor) Guard(L *lua.LState, t *lua.LTable) {
	i.Install(L, t, HintDefault)
}

// Trap reports an undefined access of key and forces the session to stop.
// Once the flag is raised further traps are silent: the session is already
// terminating and only the first diagnostic is meaningful.
func (i *Interceptor) Trap(L *lua.LState, hint string, key lua.LValue) {
	if i.flag.IsSet() {
		return
	}
	line := CurrentLine(L, 1)
	d := Diagnostic{
		Hint:    hint,
		Key:     key.String(),
		Line:    line,
		Message: FormatDiagnostic(hint, key.String(), line),
	}

	if i.notifier != nil {
		i.notifier.Notify(d.Message)
	}
	i.logger.Warn("undefined access", "key", d.Key, "hint", d.Hint, "line", d.Line)
	if i.onDiag != nil {
		i.onDiag(d)
	}
	i.flag.Set()
}

// CurrentLine returns the source line executing at stack level, where level 0
// is the running Go function and 1 its Lua caller. It returns -1 when the
// level holds no Lua code.
func CurrentLine(L *lua.LState, level int) int {
	dbg, ok := L.GetStack(level)
	if !ok {
		return -1
	}
	if _, err := L.GetInfo("l", dbg, lua.LNil); err != nil {
		return -1
	}
	return dbg.CurrentLine
}

// UndefinedAccessError wraps a Diagnostic as an error value.
type UndefinedAccessError struct {
	Diagnostic
}

func (e *UndefinedAccessError) Error() string {
	return fmt.Sprintf("undefined access of %q at line %d", e.Key, e.Line)
}
