package sim

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_RecordsCalls(t *testing.T) {
	b := New()
	ctx := context.Background()

	require.NoError(t, b.KeyDown(ctx, 17))
	require.NoError(t, b.Teleport(ctx, 10, -20))
	ok, err := b.SendPacket(ctx, "00 11")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{"KeyDown", "Teleport", "SendPacket"}, b.CallNames())
	assert.Equal(t, []any{10, -20}, b.Calls()[1].Args)
	assert.True(t, b.Held(17))
	assert.Equal(t, Point{X: 10, Y: -20}, b.Position())
	assert.Equal(t, []string{"00 11"}, b.Sent())
}

func TestBackend_MoveXStaysInsideMap(t *testing.T) {
	b := New()
	ctx := context.Background()

	ok, err := b.MoveX(ctx, 300)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 300, b.Position().X)

	ok, err = b.MoveXOff(ctx, 100, 50)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 150, b.Position().X)

	ok, err = b.MoveX(ctx, 9000)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 150, b.Position().X)
}

func TestBackend_GetMobClosest(t *testing.T) {
	b := New()
	p, err := b.GetMobClosest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -40, p.X)
}

func TestBackend_ResetClearsState(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.KeyDown(ctx, 5))
	require.NoError(t, b.HookSP(ctx))
	require.NoError(t, b.SetTimeout(ctx, 250))

	b.Reset()

	assert.False(t, b.Held(5))
	assert.False(t, b.Hooked("sp"))
	_, ok := b.Setting("timeout")
	assert.False(t, ok)
}

func TestBackend_WaitForRecv(t *testing.T) {
	b := New()

	t.Run("delivered", func(t *testing.T) {
		go func() {
			time.Sleep(5 * time.Millisecond)
			b.Deliver(0x10)
			b.Deliver(0x22)
		}()
		require.NoError(t, b.WaitForRecv(context.Background(), 0x22))
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, b.WaitForRecv(ctx, 0x99), context.DeadlineExceeded)
	})

	t.Run("interrupted", func(t *testing.T) {
		go func() {
			time.Sleep(5 * time.Millisecond)
			b.Interrupt()
		}()
		assert.ErrorIs(t, b.WaitForRecv(context.Background(), 0x99), context.Canceled)
		b.Reset()
	})
}

func TestBackend_WaitForBreathHonoursContext(t *testing.T) {
	b := New(WithBreath(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.WaitForBreath(ctx), context.Canceled)
}

func TestBackend_FilterLists(t *testing.T) {
	b := New()
	require.NoError(t, b.SetItemFilterList(context.Background(), []uint32{4000000, 0}))
	assert.Equal(t, []uint32{4000000, 0}, b.List("item_filter"))
}

func TestLoadWorld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
map_id: 42
mobs:
  - {x: 1, y: 2}
char:
  hp: 7
`), 0o644))

	w, err := LoadWorld(path)
	require.NoError(t, err)
	assert.Equal(t, 42, w.MapID)
	assert.Equal(t, []Point{{X: 1, Y: 2}}, w.Mobs)
	assert.Equal(t, 7, w.Char["hp"])
	assert.Equal(t, DefaultWorld().Map, w.Map)

	_, err = LoadWorld(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMessages(t *testing.T) {
	m := NewMessages("yes")
	m.Notify("hello")

	a, err := m.Prompt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "yes", a)

	_, err = m.Prompt(context.Background())
	assert.ErrorIs(t, err, ErrNoInput)
	assert.Equal(t, []string{"hello"}, m.All())
}

func TestConsole(t *testing.T) {
	var out strings.Builder
	c := NewConsole(&out, strings.NewReader("north\n"))

	c.Notify("pick a direction")
	a, err := c.Prompt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "north", a)
	assert.Equal(t, "pick a direction\n> ", out.String())
}

func TestConsole_PromptReturnsWhenContextEnds(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	var out strings.Builder
	c := NewConsole(&out, pr)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Prompt(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Prompt did not return after its context ended")
	}

	// The line typed after the cancel goes to the next prompt.
	go func() { _, _ = pw.Write([]byte("south\n")) }()
	a, err := c.Prompt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "south", a)
}

func TestConsole_EOF(t *testing.T) {
	c := NewConsole(io.Discard, strings.NewReader("last"))
	a, err := c.Prompt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "last", a)

	_, err = c.Prompt(context.Background())
	assert.ErrorIs(t, err, ErrNoInput)
}
