package api

import (
	"context"

	"github.com/jward/automaple/internal/marshal"
)

// Primitives is the automation backend the native API drives: input
// simulation, movement, game-state reads, packet I/O and client hooks.
// Implementations live outside the bridge; internal/sim provides a simulated
// one. Every call receives the session context, and calls that can block must
// return once it is done.
type Primitives interface {
	Input
	Movement
	World
	Network
	Hooks

	// Reset restores the backend to a neutral state before a session starts
	// and after it ends.
	Reset()
	// Interrupt wakes any primitive currently blocked on behalf of a session
	// being cancelled.
	Interrupt()
}

// Input simulates key events.
type Input interface {
	KeyDown(ctx context.Context, key int) error
	KeyUp(ctx context.Context, key int) error
	KeyPress(ctx context.Context, key int) error
	KeySpam(ctx context.Context, key int) error
	KeyUnSpam(ctx context.Context, key int) error
	KeyHoldFor(ctx context.Context, key, ms int) error
	ResetKeys(ctx context.Context) error
	// KeyPressNoHook posts the key straight to the client window, bypassing
	// the input hook.
	KeyPressNoHook(ctx context.Context, key int) error
}

// Movement moves and orients the character.
type Movement interface {
	Teleport(ctx context.Context, x, y int) error
	KamiTeleport(ctx context.Context, x, y int) error
	SetMove(ctx context.Context, x, y int) error
	MoveX(ctx context.Context, x int) (bool, error)
	MoveXOff(ctx context.Context, x, off int) (bool, error)
	MoveXOffNoStop(ctx context.Context, x, off int) (bool, error)
	Rope(ctx context.Context, x int) error
	RopeY(ctx context.Context, y int) (bool, error)
	FaceLeft(ctx context.Context) error
	FaceRight(ctx context.Context) error
	FaceTowards(ctx context.Context, x int) error
	MoveTowardsX(ctx context.Context, x int) error
	MoveTowardsY(ctx context.Context, y int) error
	SetMoveDelay(ctx context.Context, ms int) error
	SetMoveXOff(ctx context.Context, off int) error
	SetRopePollDelay(ctx context.Context, ms int) error
	SetTimeout(ctx context.Context, ms int) error
	HookMove(ctx context.Context) error
	UnHookMove(ctx context.Context) error
}

// World reads game state.
type World interface {
	GetItemCount(ctx context.Context) (int, error)
	GetMapID(ctx context.Context) (int, error)
	GetMobCount(ctx context.Context) (int, error)
	GetMobClosest(ctx context.Context) (marshal.Point, error)
	GetChar(ctx context.Context) (marshal.CharacterStats, error)
	GetMobs(ctx context.Context) ([]marshal.Point, error)
	GetRopes(ctx context.Context) ([]marshal.Rect, error)
	GetPortals(ctx context.Context) ([]marshal.NamedCount, error)
	GetInventory(ctx context.Context) (marshal.Inventory, error)
	GetMap(ctx context.Context) (marshal.Rect, error)
}

// Network sends and filters packets.
type Network interface {
	SendPacket(ctx context.Context, packet string) (bool, error)
	WaitForRecv(ctx context.Context, header int) error
	// SetRecvBlockList takes a zero-terminated list of packet headers.
	SetRecvBlockList(ctx context.Context, headers []uint32) error
}

// Hooks toggles client-side helpers.
type Hooks interface {
	EnableAutoPortal(ctx context.Context) error
	DisableAutoPortal(ctx context.Context) error
	HookSP(ctx context.Context) error
	UnHookSP(ctx context.Context) error
	SetSP(ctx context.Context, x, y int) error
	WaitForBreath(ctx context.Context) error
	AutoHP(ctx context.Context, threshold, key int) error
	AutoMP(ctx context.Context, threshold, key int) error
	HookItemFilter(ctx context.Context) error
	UnHookItemFilter(ctx context.Context) error
	SetItemFilterMinimumMesos(ctx context.Context, mesos int) error
	SetItemFilterMode(ctx context.Context, mode int) error
	// SetItemFilterList takes a zero-terminated list of item ids.
	SetItemFilterList(ctx context.Context, ids []uint32) error
}

// Notifier is the user-facing side: message boxes and input prompts.
type Notifier interface {
	Notify(msg string)
	Prompt(ctx context.Context) (string, error)
}
