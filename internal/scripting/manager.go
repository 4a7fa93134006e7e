package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// globalScope is the reserved key for shared scripts loaded via LoadGlobal.
// Hook lookups fall back to this VM when no scope VM is found.
const globalScope = "__global__"

// ErrHookNotFound is returned by EvalPredicate when neither the scope nor the
// global VM defines the requested hook.
var ErrHookNotFound = errors.New("scripting: hook not found")

// vm is one sandboxed LState. An LState is single-threaded, so every call
// holds mu.
type vm struct {
	mu        sync.Mutex
	L         *lua.LState
	instLimit int
}

// Manager owns one sandboxed LState per scope and exposes hook dispatch.
//
// Manager is safe for concurrent use. Calls into the same scope serialize;
// different scopes run concurrently.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	logger *zap.Logger
}

// NewManager creates a Manager. A nil logger is replaced with a no-op logger.
//
// Postcondition: Returns a non-nil Manager with no scopes loaded.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		vms:    make(map[string]*vm),
		logger: logger.Named("scripting"),
	}
}

// LoadScope creates a sandboxed VM for scope, registers the tactician.*
// helpers, then executes every *.lua file in scriptDir in lexicographic order.
// Reloading a scope replaces its VM.
//
// Precondition: scope must be non-empty; scriptDir must be a readable directory.
// Postcondition: the scope VM is registered; returns error on Lua load failure.
func (m *Manager) LoadScope(scope, scriptDir string, instLimit int) error {
	if scope == "" {
		return errors.New("scripting: scope must not be empty")
	}
	return m.loadInto(scope, scriptDir, instLimit)
}

// LoadGlobal creates the shared VM consulted when a scope has no VM or does
// not define a hook.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(globalScope, scriptDir, instLimit)
}

// Scopes returns the loaded scope names in sorted order, excluding the global VM.
func (m *Manager) Scopes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.vms))
	for k := range m.vms {
		if k != globalScope {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	L, cancel := NewSandboxedState(instLimit)
	cancel()
	L.RemoveContext()
	m.RegisterModules(L, key)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		release := rearm(L, instLimit)
		err := L.DoFile(path)
		release()
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	if old, ok := m.vms[key]; ok {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.vms[key] = &vm{L: L, instLimit: instLimit}
	m.mu.Unlock()
	m.logger.Debug("scripts loaded", zap.String("scope", key), zap.Int("files", len(luaFiles)))
	return nil
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.vms {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
		delete(m.vms, k)
	}
}

// lookup returns the VM that defines hook: the scope VM first, then the global VM.
func (m *Manager) lookup(scope, hook string) *vm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, key := range []string{scope, globalScope} {
		v, ok := m.vms[key]
		if !ok {
			continue
		}
		v.mu.Lock()
		defined := v.L.GetGlobal(hook).Type() == lua.LTFunction
		v.mu.Unlock()
		if defined {
			return v
		}
	}
	return nil
}

// CallHook calls the named Lua global function in scope's VM, falling back to
// the global VM. Returns (LNil, nil) if the hook is not defined anywhere.
// Lua runtime errors, including an exhausted instruction budget, are logged at
// Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error) {
	v := m.lookup(scope, hook)
	if v == nil {
		m.logger.Info("no hook",
			zap.String("scope", scope),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}
	ret, err := v.call(hook, args...)
	if err != nil {
		m.logger.Warn("Lua runtime error",
			zap.String("scope", scope),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}
	return ret, nil
}

// EvalPredicate calls hook with facts converted to a Lua table and returns the
// truthiness of its first result.
//
// Postcondition: returns ErrHookNotFound when no VM defines hook, and the Lua
// error when the hook raises or exhausts its instruction budget.
func (m *Manager) EvalPredicate(scope, hook string, facts map[string]any) (bool, error) {
	v := m.lookup(scope, hook)
	if v == nil {
		return false, fmt.Errorf("scripting.EvalPredicate %s/%s: %w", scope, hook, ErrHookNotFound)
	}
	v.mu.Lock()
	tbl := toTable(v.L, facts)
	v.mu.Unlock()
	ret, err := v.call(hook, tbl)
	if err != nil {
		return false, fmt.Errorf("scripting.EvalPredicate %s/%s: %w", scope, hook, err)
	}
	return lua.LVAsBool(ret), nil
}

func (v *vm) call(hook string, args ...lua.LValue) (lua.LValue, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	release := rearm(v.L, v.instLimit)
	defer release()

	fn := v.L.GetGlobal(hook)
	if err := v.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		return lua.LNil, err
	}
	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// toTable converts a fact map into a Lua table. Unsupported value types are skipped.
func toTable(L *lua.LState, facts map[string]any) *lua.LTable {
	t := L.NewTable()
	for k, val := range facts {
		if lv, ok := toLValue(L, val); ok {
			t.RawSetString(k, lv)
		}
	}
	return t
}

func toLValue(L *lua.LState, val any) (lua.LValue, bool) {
	switch x := val.(type) {
	case nil:
		return lua.LNil, true
	case bool:
		return lua.LBool(x), true
	case int:
		return lua.LNumber(x), true
	case int64:
		return lua.LNumber(x), true
	case float64:
		return lua.LNumber(x), true
	case string:
		return lua.LString(x), true
	case []string:
		t := L.NewTable()
		for _, s := range x {
			t.Append(lua.LString(s))
		}
		return t, true
	case map[string]string:
		t := L.NewTable()
		for k, s := range x {
			t.RawSetString(k, lua.LString(s))
		}
		return t, true
	case map[string]any:
		return toTable(L, x), true
	default:
		return lua.LNil, false
	}
}
