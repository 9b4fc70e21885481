// Package sim provides an in-memory automation backend and notifier. It
// records every primitive call and serves a fixed World, so scripts can be
// run, tested and demonstrated without a game client.
package sim

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/jward/automaple/internal/api"
	"github.com/jward/automaple/internal/marshal"
)

var _ api.Primitives = (*Backend)(nil)

// Call is one recorded primitive invocation.
type Call struct {
	Name string
	Args []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Name, c.Args)
}

// Backend is a simulated Primitives implementation. It is safe for
// concurrent use.
type Backend struct {
	mu        sync.Mutex
	world     World
	pos       Point
	facing    int
	held      map[int]bool
	spam      map[int]bool
	hooks     map[string]bool
	settings  map[string]int
	lists     map[string][]uint32
	calls     []Call
	sent      []string
	recv      chan int
	interrupt chan struct{}
	breath    time.Duration
}

// Option configures a Backend.
type Option func(*Backend)

// WithWorld sets the state the backend serves.
func WithWorld(w World) Option {
	return func(b *Backend) {
		b.world = w
		b.pos = w.Position
	}
}

// WithBreath sets how long WaitForBreath blocks.
func WithBreath(d time.Duration) Option {
	return func(b *Backend) {
		b.breath = d
	}
}

// New returns a Backend serving DefaultWorld.
func New(opts ...Option) *Backend {
	b := &Backend{
		recv:      make(chan int, 16),
		interrupt: make(chan struct{}),
	}
	WithWorld(DefaultWorld())(b)
	for _, o := range opts {
		o(b)
	}
	b.resetLocked()
	return b
}

func (b *Backend) record(name string, args ...any) {
	b.mu.Lock()
	b.calls = append(b.calls, Call{Name: name, Args: args})
	b.mu.Unlock()
}

// Calls returns a copy of everything recorded so far.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

// CallNames returns the recorded call names in order.
func (b *Backend) CallNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.calls))
	for i, c := range b.calls {
		names[i] = c.Name
	}
	return names
}

// Position reports where the simulated character stands.
func (b *Backend) Position() Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pos
}

// Held reports whether key is currently held down.
func (b *Backend) Held(key int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held[key]
}

// Hooked reports whether the named client hook is enabled.
func (b *Backend) Hooked(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hooks[name]
}

// Setting returns a tunable written by a Set* primitive.
func (b *Backend) Setting(name string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.settings[name]
	return v, ok
}

// List returns a zero-terminated list handed to a filter primitive.
func (b *Backend) List(name string) []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.lists[name])
}

// Sent returns the packets passed to SendPacket.
func (b *Backend) Sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.sent)
}

// Deliver simulates the arrival of a packet with the given header.
func (b *Backend) Deliver(header int) {
	select {
	case b.recv <- header:
	default:
	}
}

func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *Backend) resetLocked() {
	b.held = map[int]bool{}
	b.spam = map[int]bool{}
	b.hooks = map[string]bool{}
	b.settings = map[string]int{}
	b.lists = map[string][]uint32{}
	b.interrupt = make(chan struct{})
}

func (b *Backend) Interrupt() {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.interrupt:
	default:
		close(b.interrupt)
	}
}

func (b *Backend) interrupted() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interrupt
}

// block waits for d, ctx or an interrupt.
func (b *Backend) block(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.interrupted():
		return context.Canceled
	}
}

func (b *Backend) setKey(name string, key int, down bool) error {
	b.record(name, key)
	b.mu.Lock()
	b.held[key] = down
	b.mu.Unlock()
	return nil
}

func (b *Backend) set(name, key string, v int) error {
	b.record(name, v)
	b.mu.Lock()
	b.settings[key] = v
	b.mu.Unlock()
	return nil
}

func (b *Backend) hook(name, key string, on bool) error {
	b.record(name)
	b.mu.Lock()
	b.hooks[key] = on
	b.mu.Unlock()
	return nil
}

// --- input ---

func (b *Backend) KeyDown(_ context.Context, key int) error { return b.setKey("KeyDown", key, true) }
func (b *Backend) KeyUp(_ context.Context, key int) error   { return b.setKey("KeyUp", key, false) }

func (b *Backend) KeyPress(_ context.Context, key int) error {
	b.record("KeyPress", key)
	return nil
}

func (b *Backend) KeyPressNoHook(_ context.Context, key int) error {
	b.record("KeyPressNoHook", key)
	return nil
}

func (b *Backend) KeySpam(_ context.Context, key int) error {
	b.record("KeySpam", key)
	b.mu.Lock()
	b.spam[key] = true
	b.mu.Unlock()
	return nil
}

func (b *Backend) KeyUnSpam(_ context.Context, key int) error {
	b.record("KeyUnSpam", key)
	b.mu.Lock()
	delete(b.spam, key)
	b.mu.Unlock()
	return nil
}

func (b *Backend) KeyHoldFor(ctx context.Context, key, ms int) error {
	b.record("KeyHoldFor", key, ms)
	b.mu.Lock()
	b.held[key] = true
	b.mu.Unlock()
	err := b.block(ctx, time.Duration(max(ms, 0))*time.Millisecond)
	b.mu.Lock()
	b.held[key] = false
	b.mu.Unlock()
	return err
}

func (b *Backend) ResetKeys(_ context.Context) error {
	b.record("ResetKeys")
	b.mu.Lock()
	b.held = map[int]bool{}
	b.spam = map[int]bool{}
	b.mu.Unlock()
	return nil
}

// --- movement ---

func (b *Backend) moveTo(x, y int) {
	b.mu.Lock()
	b.pos = Point{X: x, Y: y}
	b.mu.Unlock()
}

func (b *Backend) Teleport(_ context.Context, x, y int) error {
	b.record("Teleport", x, y)
	b.moveTo(x, y)
	return nil
}

func (b *Backend) KamiTeleport(_ context.Context, x, y int) error {
	b.record("KamiTeleport", x, y)
	b.moveTo(x, y)
	return nil
}

func (b *Backend) SetMove(_ context.Context, x, y int) error {
	b.record("SetMove", x, y)
	b.moveTo(x, y)
	return nil
}

// walk moves horizontally to within off of x. It fails when x lies outside
// the map.
func (b *Backend) walk(x, off int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if x < b.world.Map.Left || x > b.world.Map.Right {
		return false
	}
	if int(math.Abs(float64(b.pos.X-x))) > off {
		if b.pos.X < x {
			b.pos.X = x - off
		} else {
			b.pos.X = x + off
		}
	}
	return true
}

func (b *Backend) MoveX(_ context.Context, x int) (bool, error) {
	b.record("MoveX", x)
	return b.walk(x, 0), nil
}

func (b *Backend) MoveXOff(_ context.Context, x, off int) (bool, error) {
	b.record("MoveXOff", x, off)
	return b.walk(x, max(off, 0)), nil
}

func (b *Backend) MoveXOffNoStop(_ context.Context, x, off int) (bool, error) {
	b.record("MoveXOffNoStop", x, off)
	return b.walk(x, max(off, 0)), nil
}

func (b *Backend) Rope(_ context.Context, x int) error {
	b.record("Rope", x)
	b.mu.Lock()
	b.pos.X = x
	b.mu.Unlock()
	return nil
}

func (b *Backend) RopeY(_ context.Context, y int) (bool, error) {
	b.record("RopeY", y)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.world.Ropes {
		if b.pos.X == r.Left && y >= r.Top && y <= r.Bottom {
			b.pos.Y = y
			return true, nil
		}
	}
	return false, nil
}

func (b *Backend) face(name string, dir int) error {
	b.record(name)
	b.mu.Lock()
	b.facing = dir
	b.mu.Unlock()
	return nil
}

func (b *Backend) FaceLeft(_ context.Context) error  { return b.face("FaceLeft", -1) }
func (b *Backend) FaceRight(_ context.Context) error { return b.face("FaceRight", 1) }

func (b *Backend) FaceTowards(_ context.Context, x int) error {
	b.record("FaceTowards", x)
	b.mu.Lock()
	if x < b.pos.X {
		b.facing = -1
	} else {
		b.facing = 1
	}
	b.mu.Unlock()
	return nil
}

func (b *Backend) MoveTowardsX(_ context.Context, x int) error {
	b.record("MoveTowardsX", x)
	b.mu.Lock()
	b.pos.X += sign(x - b.pos.X)
	b.mu.Unlock()
	return nil
}

func (b *Backend) MoveTowardsY(_ context.Context, y int) error {
	b.record("MoveTowardsY", y)
	b.mu.Lock()
	b.pos.Y += sign(y - b.pos.Y)
	b.mu.Unlock()
	return nil
}

func sign(d int) int {
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	}
	return 0
}

func (b *Backend) SetMoveDelay(_ context.Context, ms int) error {
	return b.set("SetMoveDelay", "move_delay", ms)
}

func (b *Backend) SetMoveXOff(_ context.Context, off int) error {
	return b.set("SetMoveXOff", "move_x_off", off)
}

func (b *Backend) SetRopePollDelay(_ context.Context, ms int) error {
	return b.set("SetRopePollDelay", "rope_poll_delay", ms)
}

func (b *Backend) SetTimeout(_ context.Context, ms int) error {
	return b.set("SetTimeout", "timeout", ms)
}

func (b *Backend) HookMove(_ context.Context) error   { return b.hook("HookMove", "move", true) }
func (b *Backend) UnHookMove(_ context.Context) error { return b.hook("UnHookMove", "move", false) }

// --- world ---

func (b *Backend) GetItemCount(_ context.Context) (int, error) {
	b.record("GetItemCount")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.world.ItemCount, nil
}

func (b *Backend) GetMapID(_ context.Context) (int, error) {
	b.record("GetMapID")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.world.MapID, nil
}

func (b *Backend) GetMobCount(_ context.Context) (int, error) {
	b.record("GetMobCount")
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.world.Mobs), nil
}

func (b *Backend) GetMobClosest(_ context.Context) (marshal.Point, error) {
	b.record("GetMobClosest")
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.world.Mobs) == 0 {
		return marshal.Point{}, nil
	}
	best := b.world.Mobs[0]
	for _, m := range b.world.Mobs[1:] {
		if dist2(m, b.pos) < dist2(best, b.pos) {
			best = m
		}
	}
	return best.native(), nil
}

func dist2(a, c Point) int {
	dx, dy := a.X-c.X, a.Y-c.Y
	return dx*dx + dy*dy
}

func (b *Backend) GetChar(_ context.Context) (marshal.CharacterStats, error) {
	b.record("GetChar")
	b.mu.Lock()
	defer b.mu.Unlock()
	stats := make(marshal.CharacterStats, len(b.world.Char)+2)
	for k, v := range b.world.Char {
		stats[k] = v
	}
	stats["x"] = b.pos.X
	stats["y"] = b.pos.Y
	return stats, nil
}

func (b *Backend) GetMobs(_ context.Context) ([]marshal.Point, error) {
	b.record("GetMobs")
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]marshal.Point, len(b.world.Mobs))
	for i, m := range b.world.Mobs {
		out[i] = m.native()
	}
	return out, nil
}

func (b *Backend) GetRopes(_ context.Context) ([]marshal.Rect, error) {
	b.record("GetRopes")
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]marshal.Rect, len(b.world.Ropes))
	for i, r := range b.world.Ropes {
		out[i] = r.native()
	}
	return out, nil
}

func (b *Backend) GetPortals(_ context.Context) ([]marshal.NamedCount, error) {
	b.record("GetPortals")
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.world.Portals), nil
}

func (b *Backend) GetInventory(_ context.Context) (marshal.Inventory, error) {
	b.record("GetInventory")
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.world.Inventory), nil
}

func (b *Backend) GetMap(_ context.Context) (marshal.Rect, error) {
	b.record("GetMap")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.world.Map.native(), nil
}

// --- network ---

func (b *Backend) SendPacket(_ context.Context, packet string) (bool, error) {
	b.record("SendPacket", packet)
	if packet == "" {
		return false, nil
	}
	b.mu.Lock()
	b.sent = append(b.sent, packet)
	b.mu.Unlock()
	return true, nil
}

// WaitForRecv blocks until Deliver is called with header.
func (b *Backend) WaitForRecv(ctx context.Context, header int) error {
	b.record("WaitForRecv", header)
	intr := b.interrupted()
	for {
		select {
		case h := <-b.recv:
			if h == header {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-intr:
			return context.Canceled
		}
	}
}

func (b *Backend) SetRecvBlockList(_ context.Context, headers []uint32) error {
	b.record("SetRecvBlockList", headers)
	b.mu.Lock()
	b.lists["recv_block"] = slices.Clone(headers)
	b.mu.Unlock()
	return nil
}

// --- hooks ---

func (b *Backend) EnableAutoPortal(_ context.Context) error {
	return b.hook("EnableAutoPortal", "auto_portal", true)
}

func (b *Backend) DisableAutoPortal(_ context.Context) error {
	return b.hook("DisableAutoPortal", "auto_portal", false)
}

func (b *Backend) HookSP(_ context.Context) error   { return b.hook("HookSP", "sp", true) }
func (b *Backend) UnHookSP(_ context.Context) error { return b.hook("UnHookSP", "sp", false) }

func (b *Backend) SetSP(_ context.Context, x, y int) error {
	b.record("SetSP", x, y)
	b.mu.Lock()
	b.settings["sp_x"] = x
	b.settings["sp_y"] = y
	b.mu.Unlock()
	return nil
}

func (b *Backend) WaitForBreath(ctx context.Context) error {
	b.record("WaitForBreath")
	return b.block(ctx, b.breath)
}

func (b *Backend) AutoHP(_ context.Context, threshold, key int) error {
	b.record("AutoHP", threshold, key)
	b.mu.Lock()
	b.settings["auto_hp"] = threshold
	b.settings["auto_hp_key"] = key
	b.mu.Unlock()
	return nil
}

func (b *Backend) AutoMP(_ context.Context, threshold, key int) error {
	b.record("AutoMP", threshold, key)
	b.mu.Lock()
	b.settings["auto_mp"] = threshold
	b.settings["auto_mp_key"] = key
	b.mu.Unlock()
	return nil
}

func (b *Backend) HookItemFilter(_ context.Context) error {
	return b.hook("HookItemFilter", "item_filter", true)
}

func (b *Backend) UnHookItemFilter(_ context.Context) error {
	return b.hook("UnHookItemFilter", "item_filter", false)
}

func (b *Backend) SetItemFilterMinimumMesos(_ context.Context, mesos int) error {
	return b.set("SetItemFilterMinimumMesos", "item_filter_mesos", mesos)
}

func (b *Backend) SetItemFilterMode(_ context.Context, mode int) error {
	return b.set("SetItemFilterMode", "item_filter_mode", mode)
}

func (b *Backend) SetItemFilterList(_ context.Context, ids []uint32) error {
	b.record("SetItemFilterList", ids)
	b.mu.Lock()
	b.lists["item_filter"] = slices.Clone(ids)
	b.mu.Unlock()
	return nil
}
