package scripting

import (
	"math"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules installs the tactician.* helper table into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: the tactician global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState, scope string) {
	mod := L.NewTable()
	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		m.logger.Debug("script log", zap.String("scope", scope), zap.String("msg", L.CheckString(1)))
		return 0
	}))
	L.SetField(mod, "clamp", L.NewFunction(func(L *lua.LState) int {
		x, lo, hi := float64(L.CheckNumber(1)), float64(L.CheckNumber(2)), float64(L.CheckNumber(3))
		L.Push(lua.LNumber(math.Max(lo, math.Min(hi, x))))
		return 1
	}))
	L.SetField(mod, "has_prefix", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(strings.HasPrefix(L.CheckString(1), L.CheckString(2))))
		return 1
	}))
	L.SetGlobal("tactician", mod)
}
