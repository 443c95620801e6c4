// Command double is an example plugin. Build it with
//
//	go build -buildmode=plugin -o double.so ./plugins/double
//
// and load it with luaplug -P double.so.
package main

import (
	"github.com/ppacher/luaplug/pkg/plugin"
	lua "github.com/yuin/gopher-lua"
)

// CreatePlugin is looked up by the plugin manager
func CreatePlugin() plugin.Plugin {
	return plugin.New("double",
		plugin.WithFunction("double", double),
		plugin.WithRequiresAPI("^1.0.0"),
	)
}

func double(L *lua.LState) int {
	n := L.CheckNumber(1)
	L.Push(n * 2)
	return 1
}

func main() {}
