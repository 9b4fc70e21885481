package intercept

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/jward/automaple/internal/cancel"
)

type recordingNotifier struct {
	msgs []string
}

func (n *recordingNotifier) Notify(msg string) {
	n.msgs = append(n.msgs, msg)
}

type fixture struct {
	L     *lua.LState
	flag  *cancel.Flag
	notes *recordingNotifier
	diags []Diagnostic
	ic    *Interceptor
}

func newFixture(t *testing.T, armed bool) *fixture {
	t.Helper()
	f := &fixture{
		L:     lua.NewState(),
		flag:  &cancel.Flag{},
		notes: &recordingNotifier{},
	}
	t.Cleanup(f.L.Close)
	if armed {
		f.L.SetContext(f.flag.Arm(context.Background()))
	}
	f.ic = New(f.flag, f.notes, WithDiagnosticHook(func(d Diagnostic) {
		f.diags = append(f.diags, d)
	}))
	return f
}

func TestTrap_UndefinedGlobal(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.ic.Install(f.L, f.L.G.Global, HintGlobal)

	err := f.L.DoString("local a = 1\nlocal b = not_defined\nlocal c = 3\n")
	require.Error(t, err, "the session context must stop the script")

	require.Len(t, f.notes.msgs, 1)
	assert.Equal(t, "Error! The following does not exist in global: not_defined\nLine: 2", f.notes.msgs[0])
	require.Len(t, f.diags, 1)
	assert.Equal(t, 2, f.diags[0].Line)
	assert.Equal(t, "not_defined", f.diags[0].Key)
	assert.True(t, f.flag.IsSet())
}

func TestTrap_UndefinedNamespaceMember(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	ns := f.L.NewTable()
	ns.RawSetString("KeyDown", f.L.NewFunction(func(L *lua.LState) int { return 0 }))
	f.L.SetGlobal("maple", ns)
	f.ic.Install(f.L, ns, NamespaceHint("maple"))

	err := f.L.DoString("maple.KeyDown(1)\n\nmaple.KeyDwn(1)\n")
	require.Error(t, err)

	require.Len(t, f.notes.msgs, 1)
	assert.Equal(t, "Error! The following does not exist in maple: KeyDwn\nLine: 3", f.notes.msgs[0])
}

func TestTrap_OnlyFirstDiagnostic(t *testing.T) {
	t.Parallel()
	// Without an armed context the VM keeps going after a trap; the second
	// miss must still be silent.
	f := newFixture(t, false)
	f.ic.Install(f.L, f.L.G.Global, HintGlobal)

	require.NoError(t, f.L.DoString("local a = first_missing\nlocal b = second_missing\n"))
	require.Len(t, f.notes.msgs, 1)
	assert.Contains(t, f.notes.msgs[0], "first_missing")
}

func TestGuard_ProducedTable(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	point := f.L.NewTable()
	point.RawSetString("x", lua.LNumber(10))
	point.RawSetString("y", lua.LNumber(20))
	f.ic.Guard(f.L, point)
	f.L.SetGlobal("p", point)

	err := f.L.DoString("local sum = p.x + p.y\nlocal z = p.z\n")
	require.Error(t, err)
	require.Len(t, f.notes.msgs, 1)
	assert.Equal(t, "Error! The following does not exist: z\nLine: 2", f.notes.msgs[0])
}

func TestGuard_PresentFieldsUntouched(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.ic.Install(f.L, f.L.G.Global, HintGlobal)

	require.NoError(t, f.L.DoString("local s = string.format('%d', 4)\nresult = s\n"))
	assert.Empty(t, f.notes.msgs)
	assert.False(t, f.flag.IsSet())
	assert.Equal(t, lua.LString("4"), f.L.GetGlobal("result"))
}

func TestLookup(t *testing.T) {
	t.Parallel()
	L := lua.NewState()
	defer L.Close()

	tbl := L.NewTable()
	tbl.RawSetString("present", lua.LFalse)

	v, ok := Lookup(tbl, lua.LString("present"))
	assert.True(t, ok)
	assert.Equal(t, lua.LFalse, v)

	_, ok = Lookup(tbl, lua.LString("absent"))
	assert.False(t, ok)
}

func TestFormatDiagnostic(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"Error! The following does not exist in maple: GetMobz\nLine: 12",
		FormatDiagnostic(NamespaceHint("maple"), "GetMobz", 12))
}
