package automaple

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/jward/automaple/internal/cancel"
	"github.com/jward/automaple/internal/intercept"
)

// ErrCancelled is observed when a session is stopped on request. It is not a
// failure.
var ErrCancelled = cancel.ErrCancelled

// ErrCancelInProgress is returned by a preempting Run issued while a previous
// cancellation has not finished.
var ErrCancelInProgress = errors.New("automaple: cancellation already in progress")

// UnknownLoadError is the message reported when a load failure carries no text.
const UnknownLoadError = "Unknown error"

// UndefinedAccessError reports a script touching a global or API member that
// does not exist.
type UndefinedAccessError = intercept.UndefinedAccessError

// ScriptLoadError means the script failed to parse or compile. The session
// never reached Running.
type ScriptLoadError struct {
	Script  string
	Message string
	Err     error
}

func (e *ScriptLoadError) Error() string {
	return fmt.Sprintf("automaple: loading %s: %s", e.Script, e.Message)
}

func (e *ScriptLoadError) Unwrap() error { return e.Err }

// UnhandledScriptError is any other failure that escaped the script.
type UnhandledScriptError struct {
	Script  string
	Message string
	Err     error
}

func (e *UnhandledScriptError) Error() string {
	return fmt.Sprintf("automaple: %s: %s", e.Script, e.Message)
}

func (e *UnhandledScriptError) Unwrap() error { return e.Err }

func loadMessage(err error) string {
	if err == nil || err.Error() == "" {
		return UnknownLoadError
	}
	return err.Error()
}

// scriptMessage strips the Lua stack trace from a runtime error.
func scriptMessage(err error) string {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}
