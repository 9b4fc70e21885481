package scripts_test

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/automaple"
	"github.com/jward/automaple/internal/lint"
	"github.com/jward/automaple/internal/runtime"
	"github.com/jward/automaple/internal/sim"
	"github.com/jward/automaple/scripts"
)

func runEmbedded(t *testing.T, name string) (*automaple.Result, *sim.Backend, *sim.Messages) {
	t.Helper()
	backend := sim.New()
	msgs := sim.NewMessages()
	c := automaple.New(backend, msgs,
		automaple.WithRuntime(runtime.NewRuntime("", runtime.WithRuntimeFS(scripts.FS))),
		automaple.WithSleepPoll(time.Millisecond),
	)
	s, err := c.LoadScript(name)
	require.NoError(t, err)

	res, err := c.Run(context.Background(), s)
	require.NoError(t, err)
	return res, backend, msgs
}

func TestEmbedded_AllComplete(t *testing.T) {
	names, err := fs.Glob(scripts.FS, "*"+runtime.ScriptExt)
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			res, _, _ := runEmbedded(t, name)
			assert.Equal(t, automaple.OutcomeCompleted, res.Outcome, "%v", res.Err)
		})
	}
}

func TestEmbedded_Lint(t *testing.T) {
	c := automaple.New(sim.New(), sim.NewMessages())
	reg, err := c.Registry()
	require.NoError(t, err)

	findings, err := lint.NewChecker(c.Namespace(), reg.Names()).CheckFS(context.Background(), scripts.FS, ".")
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestHunt(t *testing.T) {
	res, backend, msgs := runEmbedded(t, "hunt.lua")
	require.Equal(t, automaple.OutcomeCompleted, res.Outcome)

	assert.Equal(t, []string{"5"}, msgs.All())
	names := backend.CallNames()
	assert.Equal(t, "HookMove", names[0])
	assert.Equal(t, "UnHookMove", names[len(names)-1])
	assert.Contains(t, names, "KeyHoldFor")
}

// callArgs returns the arguments of the first recorded call named name.
func callArgs(t *testing.T, b *sim.Backend, name string) []any {
	t.Helper()
	for _, c := range b.Calls() {
		if c.Name == name {
			return c.Args
		}
	}
	t.Fatalf("no %s call recorded", name)
	return nil
}

func TestRoute(t *testing.T) {
	res, backend, _ := runEmbedded(t, "route.lua")
	require.Equal(t, automaple.OutcomeCompleted, res.Outcome)

	var teleports []sim.Call
	for _, call := range backend.Calls() {
		if call.Name == "Teleport" {
			teleports = append(teleports, call)
		}
	}
	require.Len(t, teleports, 3)
	assert.Equal(t, sim.Point{X: 300, Y: 0}, backend.Position())
}

func TestUpkeep(t *testing.T) {
	res, backend, msgs := runEmbedded(t, "upkeep.lua")
	require.Equal(t, automaple.OutcomeCompleted, res.Outcome)

	// Backend state is reset when the session ends, so check what was sent.
	assert.Equal(t, []any{[]uint32{2000000, 2000001, 4000000, 0}}, callArgs(t, backend, "SetItemFilterList"))
	assert.Equal(t, []any{[]uint32{0x7F, 0x80, 0}}, callArgs(t, backend, "SetRecvBlockList"))
	assert.Equal(t, []any{250, 33}, callArgs(t, backend, "AutoHP"))
	assert.Equal(t, []any{50, 34}, callArgs(t, backend, "AutoMP"))
	assert.Contains(t, backend.CallNames(), "HookItemFilter")
	assert.Equal(t, []string{"50", "3.000000"}, msgs.All())
}
