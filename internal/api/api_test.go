package api_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/jward/automaple/internal/api"
	"github.com/jward/automaple/internal/cancel"
	"github.com/jward/automaple/internal/intercept"
	"github.com/jward/automaple/internal/marshal"
	"github.com/jward/automaple/internal/sim"
)

type call struct {
	line int
	name string
}

type fixture struct {
	L       *lua.LState
	flag    *cancel.Flag
	backend *sim.Backend
	msgs    *sim.Messages
	calls   []call
}

func newFixture(t *testing.T, answers ...string) *fixture {
	t.Helper()
	f := &fixture{
		L:       lua.NewState(),
		flag:    &cancel.Flag{},
		backend: sim.New(),
		msgs:    sim.NewMessages(answers...),
	}
	t.Cleanup(f.L.Close)
	f.L.SetContext(f.flag.Arm(context.Background()))

	reg, err := api.NewRegistry(api.Builtins(api.Deps{
		Primitives: f.backend,
		Notifier:   f.msgs,
		Flag:       f.flag,
		SleepPoll:  time.Millisecond,
	})...)
	require.NoError(t, err)

	ic := intercept.New(f.flag, f.msgs)
	d := api.NewDispatcher(reg, f.flag, ic, api.WithCallHook(func(line int, name string) {
		f.calls = append(f.calls, call{line, name})
	}))

	ns := f.L.NewTable()
	d.Install(f.L, ns)
	ic.Install(f.L, ns, intercept.NamespaceHint("maple"))
	f.L.SetGlobal("maple", ns)
	return f
}

func TestBuiltins_FullTable(t *testing.T) {
	descs := api.Builtins(api.Deps{Primitives: sim.New(), Notifier: sim.NewMessages(), Flag: &cancel.Flag{}})
	reg, err := api.NewRegistry(descs...)
	require.NoError(t, err)

	assert.Equal(t, 61, reg.Len())
	names := reg.Names()
	assert.Equal(t, "WaitForRecv", names[0])
	assert.Equal(t, "SetRecvBlockList", names[len(names)-1])

	d, ok := reg.Lookup("GetPath")
	require.True(t, ok)
	assert.Equal(t, "GetPath(array of array of integer, integer, integer) -> array of integer", d.Signature())

	d, ok = reg.Lookup("KeyHoldFor")
	require.True(t, ok)
	assert.Equal(t, "KeyHoldFor(integer, integer)", d.Signature())

	_, ok = reg.Lookup("KeyDwn")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	noop := api.Proc0("Noop", func(context.Context) error { return nil })
	_, err := api.NewRegistry(noop, noop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	reg, err := api.NewRegistry()
	require.NoError(t, err)
	assert.Error(t, reg.Add(api.Descriptor{Name: "NoCall"}))
	assert.Error(t, reg.Add(api.Descriptor{Call: noop.Call}))
}

func TestDispatch_ProceduresReachPrimitives(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.L.DoString("maple.KeyDown(17)\nmaple.Teleport(5, -6)\nmaple.KeyUp(17)\n"))

	assert.Equal(t, []string{"KeyDown", "Teleport", "KeyUp"}, f.backend.CallNames())
	assert.Equal(t, []call{{1, "KeyDown"}, {2, "Teleport"}, {3, "KeyUp"}}, f.calls)
	assert.Equal(t, sim.Point{X: 5, Y: -6}, f.backend.Position())
}

func TestDispatch_ReturnsEncodedValues(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.L.DoString(`
local mobs = maple.GetMobs()
n = #mobs
x1 = mobs[1].x
local r = maple.GetMap()
left, top = r[1].x, r[2].y
moved = maple.MoveX(30)
inv = maple.GetInventory()[1][1].count
`))

	assert.Equal(t, lua.LNumber(2), f.L.GetGlobal("n"))
	assert.Equal(t, lua.LNumber(120), f.L.GetGlobal("x1"))
	assert.Equal(t, lua.LNumber(-500), f.L.GetGlobal("left"))
	assert.Equal(t, lua.LNumber(-300), f.L.GetGlobal("top"))
	assert.Equal(t, lua.LTrue, f.L.GetGlobal("moved"))
	assert.Equal(t, lua.LNumber(50), f.L.GetGlobal("inv"))
}

func TestDispatch_ReturnedTablesAreGuarded(t *testing.T) {
	f := newFixture(t)

	err := f.L.DoString("local p = maple.GetMobClosest()\nlocal z = p.z\n")
	require.Error(t, err)

	assert.Equal(t, []string{"Error! The following does not exist: z\nLine: 2"}, f.msgs.All())
	assert.True(t, f.flag.IsSet())
}

func TestDispatch_MissingOperation(t *testing.T) {
	f := newFixture(t)

	err := f.L.DoString("maple.KeyDown(1)\nmaple.KeyDwn(1)\nmaple.KeyUp(1)\n")
	require.Error(t, err)

	assert.Equal(t, []string{"Error! The following does not exist in maple: KeyDwn\nLine: 2"}, f.msgs.All())
	assert.Equal(t, []string{"KeyDown"}, f.backend.CallNames())
}

func TestDispatch_DecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"wrong scalar", `maple.KeyDown("a")`, "KeyDown: type mismatch at #1"},
		{"missing argument", `maple.Teleport(1)`, "Teleport: missing field: #2"},
		{"fractional integer", `maple.KeyDown(1.5)`, "KeyDown: type mismatch at #1"},
		{"nested path", `maple.GetPath({{2}, {"x"}}, 1, 2)`, "GetPath: type mismatch at #1[2][1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.L.DoString(tt.script)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, f.backend.Calls())
			assert.False(t, f.flag.IsSet(), "decode errors are script errors, not cancellation")
		})
	}
}

func TestDispatch_CheckpointStopsCalls(t *testing.T) {
	f := newFixture(t)
	f.flag.Set()

	err := f.L.DoString("maple.KeyDown(1)")
	require.Error(t, err)
	assert.Empty(t, f.backend.Calls())
}

func TestDispatch_GetPath(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.L.DoString(`
local p = maple.GetPath({{2}, {3}, {}}, 1, 3)
a, b, c, n = p[1], p[2], p[3], #p
local q = maple.GetPath({{2, 0}, {}, {1}}, 1, 3)
only, qn = q[1], #q
`))
	assert.Equal(t, lua.LNumber(1), f.L.GetGlobal("a"))
	assert.Equal(t, lua.LNumber(2), f.L.GetGlobal("b"))
	assert.Equal(t, lua.LNumber(3), f.L.GetGlobal("c"))
	assert.Equal(t, lua.LNumber(3), f.L.GetGlobal("n"))
	assert.Equal(t, lua.LNumber(3), f.L.GetGlobal("only"))
	assert.Equal(t, lua.LNumber(1), f.L.GetGlobal("qn"))
}

func TestGetPath(t *testing.T) {
	ctx := context.Background()

	got, err := api.GetPath(ctx, [][]int{{2}, {3}, {}}, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)

	got, err = api.GetPath(ctx, [][]int{{2}, {3}, {}}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, got)

	got, err = api.GetPath(ctx, [][]int{{2, 3}, {4}, {4}, {}}, 1, 4)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = api.GetPath(ctx, [][]int{{5}, {}}, 1, 2)
	assert.ErrorContains(t, err, "out of range")

	_, err = api.GetPath(ctx, [][]int{{2}, {}}, 0, 2)
	assert.ErrorContains(t, err, "out of range")

	_, err = api.GetPath(ctx, [][]int{{2}, {}}, 1, 3)
	assert.ErrorContains(t, err, "out of range")
}

func TestDispatch_FilterListsAreZeroTerminated(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.L.DoString("maple.SetItemFilterList({4000000, 4000001})\nmaple.SetRecvBlockList({})\n"))
	assert.Equal(t, []uint32{4000000, 4000001, 0}, f.backend.List("item_filter"))
	assert.Equal(t, []uint32{0}, f.backend.List("recv_block"))
}

func TestDispatch_Messages(t *testing.T) {
	f := newFixture(t, "typed")

	require.NoError(t, f.L.DoString(`
maple.MessageInt(42)
maple.MessageNum(1.5)
maple.Message("hi")
answer = maple.GetInput()
`))
	assert.Equal(t, []string{"42", "1.500000", "hi"}, f.msgs.All())
	assert.Equal(t, lua.LString("typed"), f.L.GetGlobal("answer"))
}

func TestDispatch_SleepIsCancellable(t *testing.T) {
	f := newFixture(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		f.flag.Set()
	}()

	start := time.Now()
	err := f.L.DoString("maple.Sleep(60000)")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDispatch_SleepCompletes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.L.DoString("maple.Sleep(5)\nmaple.Wait(-1)\n"))
	assert.False(t, f.flag.IsSet())
}

func TestDispatch_NativeErrorNamesOperation(t *testing.T) {
	f := newFixture(t)

	err := f.L.DoString("maple.GetInput()")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GetInput: ")
	assert.True(t, strings.Contains(err.Error(), sim.ErrNoInput.Error()))
}

func TestZeroTerminated(t *testing.T) {
	assert.Equal(t, []uint32{0}, api.ZeroTerminated(nil))
	assert.Equal(t, []uint32{7, 9, 0}, api.ZeroTerminated([]int{7, 9}))
}

func TestFormatCallLine(t *testing.T) {
	assert.Equal(t, "12: KeyDown", api.FormatCallLine(12, "KeyDown"))
}

func TestProcAndFuncConstructors(t *testing.T) {
	d := api.Func2("Add", marshal.Int, marshal.Int, marshal.Int, func(_ context.Context, a, b int) (int, error) {
		return a + b, nil
	})
	got, err := d.Call(context.Background(), []any{2, 3})
	require.NoError(t, err)
	assert.Equal(t, 5, got)
	assert.Len(t, d.Args, 2)
	assert.Equal(t, "Add(integer, integer) -> integer", d.Signature())
}
