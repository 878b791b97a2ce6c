// Package luabind exposes terminal sessions to Lua plugin scripts.
//
// A shell crosses the boundary as its command name string, so scripts
// read and write plain values rather than userdata. Sessions cross as
// userdata with a method table; scripts drive them with the same
// operations the editor uses.
package luabind

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/shellpty/shell"
)

const sessionTypeName = "terminal_session"

// Runner is the session surface scripts may drive. *session.Session
// satisfies it.
type Runner interface {
	ID() string
	Output() string
	InputLine() string
	IsAlive() bool
	RunCommand(cmd string) error
	SilentRunCommand(cmd string) error
	CharInput(c rune) error
	CharPop()
	Clear() error
	Write(data string) error
	Resize(rows, cols uint16) error
	Close() error
}

// PushShell converts a shell to its Lua representation.
func PushShell(sh shell.Shell) lua.LValue {
	return lua.LString(sh.Command())
}

// ShellFromValue converts a Lua value to a shell. Non-string values
// and unrecognized names yield the environment default.
func ShellFromValue(lv lua.LValue) shell.Shell {
	s, ok := lv.(lua.LString)
	if !ok {
		return shell.Default()
	}
	sh, ok := shell.FromString(string(s))
	if !ok {
		return shell.Default()
	}
	return sh
}

// RegisterSessionType installs the session metatable into L. Call once
// per state before PushSession.
func RegisterSessionType(L *lua.LState) {
	mt := L.NewTypeMetatable(sessionTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), sessionMethods))
}

// PushSession wraps r as Lua userdata carrying the session metatable.
func PushSession(L *lua.LState, r Runner) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = r
	L.SetMetatable(ud, L.GetTypeMetatable(sessionTypeName))
	return ud
}

var sessionMethods = map[string]lua.LGFunction{
	"id":         sessionID,
	"output":     sessionOutput,
	"input_line": sessionInputLine,
	"is_alive":   sessionIsAlive,
	"run":        sessionRun,
	"silent_run": sessionSilentRun,
	"char_input": sessionCharInput,
	"char_pop":   sessionCharPop,
	"clear":      sessionClear,
	"write":      sessionWrite,
	"resize":     sessionResize,
	"close":      sessionClose,
}

func checkRunner(L *lua.LState) Runner {
	ud := L.CheckUserData(1)
	if r, ok := ud.Value.(Runner); ok {
		return r
	}
	L.ArgError(1, "terminal session expected")
	return nil
}

func sessionID(L *lua.LState) int {
	L.Push(lua.LString(checkRunner(L).ID()))
	return 1
}

func sessionOutput(L *lua.LState) int {
	L.Push(lua.LString(checkRunner(L).Output()))
	return 1
}

func sessionInputLine(L *lua.LState) int {
	L.Push(lua.LString(checkRunner(L).InputLine()))
	return 1
}

func sessionIsAlive(L *lua.LState) int {
	L.Push(lua.LBool(checkRunner(L).IsAlive()))
	return 1
}

func sessionRun(L *lua.LState) int {
	r := checkRunner(L)
	cmd := L.CheckString(2)
	if err := r.RunCommand(cmd); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func sessionSilentRun(L *lua.LState) int {
	r := checkRunner(L)
	cmd := L.CheckString(2)
	if err := r.SilentRunCommand(cmd); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// sessionCharInput feeds each rune of the argument through the
// keystroke path, so a script may send either one character or a whole
// line ending in "\n".
func sessionCharInput(L *lua.LState) int {
	r := checkRunner(L)
	text := L.CheckString(2)
	for _, c := range text {
		if err := r.CharInput(c); err != nil {
			L.RaiseError("%s", err.Error())
		}
	}
	return 0
}

func sessionCharPop(L *lua.LState) int {
	checkRunner(L).CharPop()
	return 0
}

func sessionClear(L *lua.LState) int {
	if err := checkRunner(L).Clear(); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func sessionWrite(L *lua.LState) int {
	r := checkRunner(L)
	data := L.CheckString(2)
	if err := r.Write(data); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func sessionResize(L *lua.LState) int {
	r := checkRunner(L)
	rows := L.CheckInt(2)
	cols := L.CheckInt(3)
	if rows <= 0 || rows > 0xffff || cols <= 0 || cols > 0xffff {
		L.ArgError(2, "dimensions out of range")
	}
	if err := r.Resize(uint16(rows), uint16(cols)); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func sessionClose(L *lua.LState) int {
	if err := checkRunner(L).Close(); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}
