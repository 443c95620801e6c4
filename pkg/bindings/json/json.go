// Package json provides a built-in plugin with json_encode and
// json_decode.
package json

import (
	"github.com/ppacher/luaplug/pkg/plugin"
	lua "github.com/yuin/gopher-lua"
	luajson "layeh.com/gopher-json"
)

// Name is the name of the plugin
const Name = "json"

func init() {
	plugin.Register(New)
}

// New returns a new json plugin
func New() plugin.Plugin {
	return plugin.New(Name,
		plugin.WithFunction("json_encode", encode),
		plugin.WithFunction("json_decode", decode),
	)
}

// encode returns the JSON document for the first argument or nil and an
// error message
func encode(L *lua.LState) int {
	value := L.CheckAny(1)

	data, err := luajson.Encode(value)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(lua.LString(data))
	return 1
}

// decode parses a JSON document into lua values
func decode(L *lua.LState) int {
	str := L.CheckString(1)

	value, err := luajson.Decode(L, []byte(str))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(value)
	return 1
}
