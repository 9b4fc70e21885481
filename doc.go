// Package automaple hosts automation scripts written in Lua and bridges them
// to a native automation backend.
//
// # Sessions
//
// A [Controller] runs at most one script at a time. [Controller.Run] waits for
// the controller to be idle, builds a fresh sandboxed Lua state, loads the
// script and runs it on the caller's goroutine:
//
//	c := automaple.New(backend, notifier, automaple.WithLogger(logger))
//	res, err := c.Run(ctx, automaple.Script{Name: "farm.lua", Source: src})
//
// Any other goroutine may call [Controller.RequestCancel]. It raises the
// cancellation flag, which cancels the session context that the Lua VM checks
// before every instruction, and then blocks until the controller is idle. A
// cancelled session ends with [OutcomeCancelled]; cancellation is not an
// error.
//
// # Native API
//
// Scripts reach the backend through a single global table, "maple" by
// default. The table is built from the descriptor list in internal/api, where
// every operation declares its argument and return shapes once. Run
// `automaple ops` for the full list.
//
// Reading a global or a member of the API table that does not exist does not
// quietly yield nil: the session is stopped and the user is shown
//
//	Error! The following does not exist in maple: KeyDwn
//	Line: 3
//
// Tables returned by the API are guarded the same way.
//
// # Journal
//
// With [WithJournal] every session, native call and diagnostic is recorded to
// SQLite. [History] reads it back.
package automaple
