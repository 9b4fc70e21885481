// Package runtime builds the Lua states scripts run in: a sandboxed standard
// library, the native API namespace, and guarded globals.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/jward/automaple/internal/api"
	"github.com/jward/automaple/internal/cancel"
	"github.com/jward/automaple/internal/intercept"
	"github.com/jward/automaple/internal/logging"
)

// DefaultNamespace is the global table scripts reach the native API through.
const DefaultNamespace = "maple"

// ScriptExt is the extension of script files.
const ScriptExt = ".lua"

// Runtime loads scripts and constructs session states.
type Runtime struct {
	scriptsDir string
	fsys       fs.FS
	namespace  string
	logger     *logging.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts from fsys instead of from disk.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithNamespace sets the name of the API table. Empty keeps the default.
func WithNamespace(ns string) RuntimeOption {
	return func(r *Runtime) {
		if ns != "" {
			r.namespace = ns
		}
	}
}

// WithLogger sets the logger that receives script print output.
func WithLogger(l *logging.Logger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRuntime creates a Runtime that resolves relative script paths against
// scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		scriptsDir: scriptsDir,
		namespace:  DefaultNamespace,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Namespace returns the name of the API table.
func (r *Runtime) Namespace() string {
	return r.namespace
}

// LoadScript reads a script's source. With an fs.FS configured the path is
// taken relative to its root; otherwise relative paths are joined to
// scriptsDir.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// ScriptPath appends ScriptExt to name when it has no extension.
func ScriptPath(name string) string {
	if filepath.Ext(name) == "" {
		return name + ScriptExt
	}
	return name
}

// Compile parses and compiles source. label names the chunk in error
// messages and stack traces.
func Compile(source, label string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(strings.NewReader(source), label)
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, label)
	if err != nil {
		return nil, err
	}
	return proto, nil
}

// Bindings are the per-session collaborators wired into a new state.
type Bindings struct {
	Registry    *api.Registry
	Flag        *cancel.Flag
	Interceptor *intercept.Interceptor
	Dispatch    []api.DispatcherOption
}

// NewState builds a sandboxed state for one session. ctx is the session
// context: once it is done the VM stops at the next instruction. The caller
// owns the state and must Close it.
func (r *Runtime) NewState(ctx context.Context, b Bindings) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	installPrint(L, r.logger)

	ns := L.NewTable()
	api.NewDispatcher(b.Registry, b.Flag, b.Interceptor, b.Dispatch...).Install(L, ns)
	L.SetGlobal(r.namespace, ns)

	b.Interceptor.Install(L, ns, intercept.NamespaceHint(r.namespace))
	b.Interceptor.Install(L, L.G.Global, intercept.HintGlobal)

	L.SetContext(ctx)
	return L
}

// Exec runs a compiled script to completion on L.
func Exec(L *lua.LState, proto *lua.FunctionProto) error {
	L.Push(L.NewFunctionFromProto(proto))
	return L.PCall(0, lua.MultRet, nil)
}
