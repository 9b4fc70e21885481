package runtime

import (
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/jward/automaple/internal/logging"
)

// installPrint replaces print so script output goes to the logger instead of
// the process stdout.
func installPrint(L *lua.LState, logger *logging.Logger) {
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		parts := make([]string, top)
		for i := 1; i <= top; i++ {
			parts[i-1] = L.ToStringMeta(L.Get(i)).String()
		}
		logger.Info(strings.Join(parts, "\t"), "source", "print")
		return 0
	}))
}
