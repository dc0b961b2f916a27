package config

import (
	lua "github.com/yuin/gopher-lua"
)

// sandboxLuaVM removes every global that could run commands, touch the
// filesystem, load code or inspect the VM. string, table and math remain.
func sandboxLuaVM(L *lua.LState) {
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)

	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("module", lua.LNil)
	L.SetGlobal("package", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)

	L.SetGlobal("debug", lua.LNil)
	L.SetGlobal("collectgarbage", lua.LNil)
	L.SetGlobal("rawget", lua.LNil)
	L.SetGlobal("rawset", lua.LNil)
	L.SetGlobal("rawequal", lua.LNil)
	L.SetGlobal("setmetatable", lua.LNil)
	L.SetGlobal("getfenv", lua.LNil)
	L.SetGlobal("setfenv", lua.LNil)
}

// newSandboxedVM creates a Lua VM with sandboxing applied.
func newSandboxedVM() *lua.LState {
	L := lua.NewState(lua.Options{
		CallStackSize: 256,
		RegistrySize:  1024 * 8,
	})
	sandboxLuaVM(L)
	return L
}
