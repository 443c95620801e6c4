// Package shell provides a built-in plugin for splitting, quoting and
// running command lines.
//
//	local args = shell_split([[echo "hello world"]])
//	local line = shell_join({"rm", "my file"})
//	local output, reason, code = shell_exec("uname -s")
package shell

import (
	"context"
	"errors"
	"os/exec"
	"syscall"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/ppacher/luaplug/pkg/plugin"
	lua "github.com/yuin/gopher-lua"
)

// Name is the name of the plugin
const Name = "shell"

func init() {
	plugin.Register(New)
}

// New returns a new shell plugin
func New() plugin.Plugin {
	return plugin.New(Name,
		plugin.WithFunctions(map[string]lua.LGFunction{
			"shell_split": split,
			"shell_join":  join,
			"shell_exec":  execute,
		}),
	)
}

// split splits a command line into its words
func split(L *lua.LState) int {
	words, err := shellquote.Split(L.CheckString(1))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	t := L.CreateTable(len(words), 0)
	for _, w := range words {
		t.Append(lua.LString(w))
	}

	L.Push(t)
	return 1
}

// join quotes all values of the array argument and joins them
func join(L *lua.LState) int {
	t := L.CheckTable(1)

	words := make([]string, 0, t.Len())
	for i := 1; i <= t.Len(); i++ {
		words = append(words, lua.LVAsString(t.RawGetInt(i)))
	}

	L.Push(lua.LString(shellquote.Join(words...)))
	return 1
}

// execute runs a command and waits for it to finish. The command line is
// split into words unless the second argument is true, in which case it
// is passed to "sh -c". It returns the combined output, the exit reason
// ("exit" or "signal") and the exit code or signal number
func execute(L *lua.LState) int {
	cmdStr := L.CheckString(1)
	shell := L.OptBool(2, false)

	var cmd []string

	if shell {
		cmd = []string{"sh", "-c", cmdStr}
	} else {
		var err error
		cmd, err = shellquote.Split(cmdStr)

		if err != nil || len(cmd) == 0 {
			L.RaiseError("invalid command line")
			return 0
		}
	}

	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...)

	output, err := c.CombinedOutput()

	reason, code, err := exitStatus(err)
	if err != nil {
		L.RaiseError("failed to run process: %v", err)
		return 0
	}

	L.Push(lua.LString(output))
	L.Push(lua.LString(reason))
	L.Push(lua.LNumber(code))
	return 3
}

// exitStatus translates the result of exec.Cmd.Wait. err is only returned
// if the process could not be started
func exitStatus(err error) (reason string, codeOrSignal int, _ error) {
	if err == nil {
		return "exit", 0, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return "", 0, err
	}

	// godoc: -1 if the process hasn't exited or was terminated by a signal
	// we know that it exited so it must have been a signal
	if exitErr.ExitCode() == -1 {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return "signal", int(status.Signal()), nil
		}
		return "signal", -1, nil
	}

	return "exit", exitErr.ExitCode(), nil
}
