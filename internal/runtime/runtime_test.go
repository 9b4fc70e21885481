package runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/jward/automaple/internal/api"
	"github.com/jward/automaple/internal/cancel"
	"github.com/jward/automaple/internal/config"
	"github.com/jward/automaple/internal/intercept"
	"github.com/jward/automaple/internal/logging"
	"github.com/jward/automaple/internal/marshal"
)

type notes struct {
	msgs []string
}

func (n *notes) Notify(msg string) { n.msgs = append(n.msgs, msg) }

type session struct {
	L     *lua.LState
	flag  *cancel.Flag
	notes *notes
	got   []int
}

func newSession(t *testing.T, rt *Runtime) *session {
	t.Helper()
	s := &session{flag: &cancel.Flag{}, notes: &notes{}}
	reg, err := api.NewRegistry(
		api.Proc1("Record", marshal.Int, func(_ context.Context, v int) error {
			s.got = append(s.got, v)
			return nil
		}),
		api.Func0("Answer", marshal.Int, func(context.Context) (int, error) {
			return 42, nil
		}),
	)
	require.NoError(t, err)

	s.L = rt.NewState(s.flag.Arm(context.Background()), Bindings{
		Registry:    reg,
		Flag:        s.flag,
		Interceptor: intercept.New(s.flag, s.notes),
	})
	t.Cleanup(s.L.Close)
	return s
}

func run(t *testing.T, s *session, src string) error {
	t.Helper()
	proto, err := Compile(src, "test")
	require.NoError(t, err)
	return Exec(s.L, proto)
}

func TestNewState_ExposesNamespace(t *testing.T) {
	t.Parallel()
	s := newSession(t, NewRuntime(""))

	require.NoError(t, run(t, s, "maple.Record(maple.Answer())\nmaple.Record(#{1, 2})\n"))
	assert.Equal(t, []int{42, 2}, s.got)
}

func TestNewState_CustomNamespace(t *testing.T) {
	t.Parallel()
	s := newSession(t, NewRuntime("", WithNamespace("bot")))

	require.NoError(t, run(t, s, "bot.Record(1)"))
	assert.Equal(t, []int{1}, s.got)
}

func TestNewState_SandboxedLibraries(t *testing.T) {
	t.Parallel()
	s := newSession(t, NewRuntime(""))

	require.NoError(t, run(t, s, "maple.Record(math.max(3, 9))\nmaple.Record(string.len('abc'))\nmaple.Record(#table.concat({'a','b'}))\n"))
	assert.Equal(t, []int{9, 3, 2}, s.got)

	for _, name := range []string{"os", "io", "dofile", "require", "load"} {
		t.Run(name, func(t *testing.T) {
			s := newSession(t, NewRuntime(""))
			err := run(t, s, "local x = "+name+"\n")
			require.Error(t, err)
			require.Len(t, s.notes.msgs, 1)
			assert.Equal(t, "Error! The following does not exist in global: "+name+"\nLine: 1", s.notes.msgs[0])
		})
	}
}

func TestNewState_NamespaceMissIsTrapped(t *testing.T) {
	t.Parallel()
	s := newSession(t, NewRuntime(""))

	err := run(t, s, "maple.Record(1)\n\nmaple.Recrod(2)\nmaple.Record(3)\n")
	require.Error(t, err)
	assert.Equal(t, []int{1}, s.got)
	assert.Equal(t, []string{"Error! The following does not exist in maple: Recrod\nLine: 3"}, s.notes.msgs)
	assert.True(t, s.flag.IsSet())
}

func TestNewState_PrintGoesToLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "text"}, "test")
	s := newSession(t, NewRuntime("", WithLogger(logger)))

	require.NoError(t, run(t, s, `print("hello", 7)`))
	assert.Contains(t, buf.String(), `hello\t7`)
	assert.Contains(t, buf.String(), "source=print")
}

func TestNewState_StopsWhenFlagIsSet(t *testing.T) {
	t.Parallel()
	s := newSession(t, NewRuntime(""))
	s.flag.Set()

	err := run(t, s, "while true do end")
	require.Error(t, err)
}

func TestCompile_SyntaxError(t *testing.T) {
	t.Parallel()
	_, err := Compile("local = 1", "broken.lua")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.lua")
}

func TestScriptPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "farm.lua", ScriptPath("farm"))
	assert.Equal(t, "farm.lua", ScriptPath("farm.lua"))
	assert.Equal(t, "dir/farm.txt", ScriptPath("dir/farm.txt"))
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.lua")
	content := `local x = 42`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rt := NewRuntime(dir)

	got, err := rt.LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	got, err = rt.LoadScript("test.lua")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = rt.LoadScript("nonexistent.lua")
	require.Error(t, err)
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()

	content := `local y = 99`
	mapFS := fstest.MapFS{
		"farm/loop.lua": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("farm/loop.lua")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	got, err = rt.LoadScript("/farm/loop.lua")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = rt.LoadScript("missing.lua")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}
