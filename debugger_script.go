// debugger_script.go - Lua breakpoint/watch expressions for the interactive
// debugger. Grounded on oisee-minz's LuaEvaluator (lua.NewState, the
// "return (%s)" expression-wrapping trick, and the lua.LNumber/LBool/LString
// result-switch), generalised from compile-time code generation to
// evaluating a condition against the running Z80's registers and memory
// once per frame.

package main

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// DebuggerScript evaluates small Lua expressions against a Machine's CPU
// and bus state, for conditional breakpoints ("a == 0x10 and pc > 0x8000")
// and memory watches ("peek(23624) ~= 0").
type DebuggerScript struct {
	L *lua.LState
}

// NewDebuggerScript opens a fresh Lua state. Each evaluation gets its own
// globals set from the current CPU/bus, so stale state never leaks between
// stops.
func NewDebuggerScript() *DebuggerScript {
	return &DebuggerScript{L: lua.NewState()}
}

// Close releases the Lua state.
func (s *DebuggerScript) Close() {
	s.L.Close()
}

// Eval sets the CPU's registers and a peek() memory accessor as Lua
// globals, evaluates expr as a boolean expression, and returns the result.
// A non-boolean result is truthy unless it is Lua nil, false, or zero -
// the same "truthy" rule the teacher's condition-evaluation style expects.
func (s *DebuggerScript) Eval(cpu *CPU_Z80, bus *SpectrumBus, expr string) (bool, error) {
	L := s.L
	L.SetGlobal("pc", lua.LNumber(cpu.PC))
	L.SetGlobal("sp", lua.LNumber(cpu.SP))
	L.SetGlobal("a", lua.LNumber(cpu.A))
	L.SetGlobal("f", lua.LNumber(cpu.F))
	L.SetGlobal("b", lua.LNumber(cpu.B))
	L.SetGlobal("c", lua.LNumber(cpu.C))
	L.SetGlobal("d", lua.LNumber(cpu.D))
	L.SetGlobal("e", lua.LNumber(cpu.E))
	L.SetGlobal("h", lua.LNumber(cpu.H))
	L.SetGlobal("l", lua.LNumber(cpu.L))
	L.SetGlobal("ix", lua.LNumber(cpu.IX))
	L.SetGlobal("iy", lua.LNumber(cpu.IY))
	L.SetGlobal("af", lua.LNumber(cpu.AF()))
	L.SetGlobal("bc", lua.LNumber(cpu.BC()))
	L.SetGlobal("de", lua.LNumber(cpu.DE()))
	L.SetGlobal("hl", lua.LNumber(cpu.HL()))
	L.SetGlobal("peek", L.NewFunction(func(L *lua.LState) int {
		addr := L.CheckInt(1)
		L.Push(lua.LNumber(bus.Read(uint16(addr))))
		return 1
	}))

	if err := L.DoString(fmt.Sprintf("return (%s)", expr)); err != nil {
		return false, fmt.Errorf("debugger: invalid expression %q: %w", expr, err)
	}
	result := L.Get(-1)
	L.Pop(1)

	switch v := result.(type) {
	case lua.LBool:
		return bool(v), nil
	case lua.LNumber:
		return v != 0, nil
	case *lua.LNilType:
		return false, nil
	default:
		return true, nil
	}
}
