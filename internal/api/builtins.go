package api

import (
	"context"
	"fmt"
	"time"

	"github.com/jward/automaple/internal/cancel"
	"github.com/jward/automaple/internal/logging"
	m "github.com/jward/automaple/internal/marshal"
	"github.com/jward/automaple/internal/pathplan"
)

// DefaultSleepPoll bounds how long Sleep and Wait go without looking at the
// cancellation flag.
const DefaultSleepPoll = 10 * time.Millisecond

// Deps are the collaborators the builtin table closes over.
type Deps struct {
	Primitives Primitives
	Notifier   Notifier
	Flag       *cancel.Flag
	Logger     *logging.Logger
	SleepPoll  time.Duration
}

// Builtins returns the full native operation table, in the order scripts
// have always seen it.
func Builtins(deps Deps) []Descriptor {
	p := deps.Primitives
	h := &hostOps{deps: deps}
	if h.deps.Logger == nil {
		h.deps.Logger = logging.Discard()
	}
	if h.deps.SleepPoll <= 0 {
		h.deps.SleepPoll = DefaultSleepPoll
	}

	return []Descriptor{
		Proc1("WaitForRecv", m.Int, p.WaitForRecv),
		Proc1("KeyDown", m.Int, p.KeyDown),
		Proc1("KeyUp", m.Int, p.KeyUp),
		Proc1("KeyPress", m.Int, p.KeyPress),
		Proc1("KeySpam", m.Int, p.KeySpam),
		Proc2("KeyHoldFor", m.Int, m.Int, p.KeyHoldFor),
		Proc1("KeyUnSpam", m.Int, p.KeyUnSpam),
		Proc0("ResetKeys", p.ResetKeys),
		Proc0("EnableAutoPortal", p.EnableAutoPortal),
		Proc0("DisableAutoPortal", p.DisableAutoPortal),
		Proc2("Teleport", m.Int, m.Int, p.Teleport),
		Proc2("KamiTeleport", m.Int, m.Int, p.KamiTeleport),
		Proc0("HookSP", p.HookSP),
		Proc0("UnHookSP", p.UnHookSP),
		Proc2("SetSP", m.Int, m.Int, p.SetSP),
		Proc0("WaitForBreath", p.WaitForBreath),
		Func0("GetItemCount", m.Int, p.GetItemCount),
		Func0("GetMapID", m.Int, p.GetMapID),
		Func0("GetMobCount", m.Int, p.GetMobCount),
		Func0("GetMobClosest", m.PointCodec, p.GetMobClosest),
		Func0("GetChar", m.StatsCodec, p.GetChar),
		Func0("GetMobs", m.ArrayOf(m.PointCodec), p.GetMobs),
		Func0("GetRopes", m.ArrayOf(m.RectCodec), p.GetRopes),
		Func0("GetPortals", m.ArrayOf(m.NamedCountCodec), p.GetPortals),
		Func0("GetInventory", m.InventoryCodec, p.GetInventory),
		Func0("GetMap", m.RectCodec, p.GetMap),
		Proc2("AutoHP", m.Int, m.Int, p.AutoHP),
		Proc2("AutoMP", m.Int, m.Int, p.AutoMP),
		Func1("SendPacket", m.String, m.Bool, p.SendPacket),
		Proc1("SetMoveDelay", m.Int, p.SetMoveDelay),
		Proc1("SetMoveXOff", m.Int, p.SetMoveXOff),
		Proc1("SetRopePollDelay", m.Int, p.SetRopePollDelay),
		Proc0("HookMove", p.HookMove),
		Proc0("UnHookMove", p.UnHookMove),
		Proc2("SetMove", m.Int, m.Int, p.SetMove),
		Func1("MoveX", m.Int, m.Bool, p.MoveX),
		Func2("MoveXOff", m.Int, m.Int, m.Bool, p.MoveXOff),
		Func2("MoveXOffNoStop", m.Int, m.Int, m.Bool, p.MoveXOffNoStop),
		Proc1("Rope", m.Int, p.Rope),
		Func1("RopeY", m.Int, m.Bool, p.RopeY),
		Proc0("FaceLeft", p.FaceLeft),
		Proc0("FaceRight", p.FaceRight),
		Proc1("FaceTowards", m.Int, p.FaceTowards),
		Proc1("MoveTowardsX", m.Int, p.MoveTowardsX),
		Proc1("MoveTowardsY", m.Int, p.MoveTowardsY),
		Proc1("SetTimeout", m.Int, p.SetTimeout),
		Proc0("HookItemFilter", p.HookItemFilter),
		Proc0("UnHookItemFilter", p.UnHookItemFilter),
		Proc1("SetItemFilterMinimumMesos", m.Int, p.SetItemFilterMinimumMesos),
		Proc1("SetItemFilterMode", m.Int, p.SetItemFilterMode),
		Proc1("Sleep", m.Int, h.sleep),
		Proc1("Wait", m.Int, h.sleep),
		Proc1("KeyPressNoHook", m.Int, p.KeyPressNoHook),
		Proc1("MessageInt", m.Int, h.messageInt),
		Proc1("MessageNum", m.Number, h.messageNum),
		Proc1("Message", m.String, h.message),
		Proc1("Log", m.String, h.log),
		Func0("GetInput", m.String, h.getInput),
		Func3("GetPath", m.Adjacency, m.Int, m.Int, m.IntList, GetPath),
		Proc1("SetItemFilterList", m.IntList, h.setItemFilterList),
		Proc1("SetRecvBlockList", m.IntList, h.setRecvBlockList),
	}
}

// hostOps are the operations implemented by the bridge itself rather than
// forwarded to Primitives.
type hostOps struct {
	deps Deps
}

func (h *hostOps) sleep(ctx context.Context, ms int) error {
	if ms < 0 {
		ms = 0
	}
	return h.deps.Flag.Sleep(ctx, time.Duration(ms)*time.Millisecond, h.deps.SleepPoll)
}

func (h *hostOps) messageInt(_ context.Context, n int) error {
	h.deps.Notifier.Notify(fmt.Sprintf("%d", n))
	return nil
}

func (h *hostOps) messageNum(_ context.Context, n float64) error {
	h.deps.Notifier.Notify(fmt.Sprintf("%f", n))
	return nil
}

func (h *hostOps) message(_ context.Context, s string) error {
	h.deps.Notifier.Notify(s)
	return nil
}

func (h *hostOps) log(_ context.Context, s string) error {
	h.deps.Logger.Info(s, "source", "script")
	return nil
}

func (h *hostOps) getInput(ctx context.Context) (string, error) {
	return h.deps.Notifier.Prompt(ctx)
}

func (h *hostOps) setItemFilterList(ctx context.Context, ids []int) error {
	return h.deps.Primitives.SetItemFilterList(ctx, ZeroTerminated(ids))
}

func (h *hostOps) setRecvBlockList(ctx context.Context, headers []int) error {
	return h.deps.Primitives.SetRecvBlockList(ctx, ZeroTerminated(headers))
}

// ZeroTerminated copies ids into a buffer with a trailing 0 sentinel.
func ZeroTerminated(ids []int) []uint32 {
	buf := make([]uint32, len(ids)+1)
	for i, id := range ids {
		buf[i] = uint32(id)
	}
	return buf
}

// GetPath finds the fewest-hop route through a 1-based adjacency list.
// Entries <= 0 are padding and ignored. An unreachable end yields [end].
func GetPath(_ context.Context, adj [][]int, start, end int) ([]int, error) {
	n := len(adj)
	if start < 1 || start > n {
		return nil, fmt.Errorf("start vertex %d out of range 1..%d", start, n)
	}
	if end < 1 || end > n {
		return nil, fmt.Errorf("end vertex %d out of range 1..%d", end, n)
	}
	g := pathplan.New(n)
	for i, row := range adj {
		for _, v := range row {
			if v <= 0 {
				continue
			}
			if v > n {
				return nil, fmt.Errorf("vertex %d lists neighbour %d, out of range 1..%d", i+1, v, n)
			}
			if err := g.AddEdge(i, v-1, 1); err != nil {
				return nil, err
			}
		}
	}
	path, err := pathplan.ShortestPath(g, start-1, end-1)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(path))
	for i, v := range path {
		out[i] = v + 1
	}
	return out, nil
}
