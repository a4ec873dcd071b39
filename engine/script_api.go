// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package engine

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"aurcor.io/x/aurcor/aurcorlog"
	"aurcor.io/x/aurcor/color"
	"aurcor.io/x/aurcor/interp"
	"aurcor.io/x/aurcor/pipeline"
	"aurcor.io/x/aurcor/pool"
	"aurcor.io/x/aurcor/preset"
	"aurcor.io/x/aurcor/scriptconfig"
)

// bindFactory is the preset.BindFactory every preset this engine creates
// is given; it closes over e so every script gets length()/config()/
// output_* bound to its own bus and config, per spec.md §6 "Script-facing
// API".
func (e *Engine) bindFactory(p *preset.Preset, heap, workStack, ledBuffer *pool.Block) interp.Binder {
	return func(L *lua.LState) error {
		s := &scriptSession{engine: e, preset: p, ledBuffer: ledBuffer, log: aurcorlog.New(p.Name, nil)}

		L.SetGlobal("length", L.NewFunction(s.luaLength))
		L.SetGlobal("default_fps", L.NewFunction(s.luaDefaultFPS))
		L.SetGlobal("register_config", L.NewFunction(s.luaRegisterConfig))
		L.SetGlobal("config", L.NewFunction(s.luaConfig))
		L.SetGlobal("config_set", L.NewFunction(s.luaConfigSet))
		L.SetGlobal("output_rgb", L.NewFunction(s.outputFunc(pipeline.RGB)))
		L.SetGlobal("output_hsv", L.NewFunction(s.outputFunc(pipeline.HSV)))
		L.SetGlobal("output_exp_hsv", L.NewFunction(s.outputFunc(pipeline.ExpHSV)))
		L.SetGlobal("output_defaults", L.NewFunction(s.outputFunc(pipeline.SetDefaults)))
		L.SetGlobal("hsv_to_rgb_tuple", L.NewFunction(s.luaHSVToRGBTuple))
		L.SetGlobal("rgb_to_hsv_tuple", L.NewFunction(s.luaRGBToHSVTuple))
		L.SetGlobal("next_ticks_ms", L.NewFunction(s.luaNextTicksMs))

		L.SetGlobal("ulogging", s.buildLoggingModule(L))
		return nil
	}
}

// scriptSession is the per-run state a Binder closure needs: the
// preset/bus it's wired to, the LED buffer block borrowed for this run,
// and the wall-clock bookkeeping output_* uses to pace frames.
type scriptSession struct {
	engine    *Engine
	preset    *preset.Preset
	ledBuffer *pool.Block
	log       *aurcorlog.Logger

	prevFrameEndUs int64
}

func (s *scriptSession) luaLength(L *lua.LState) int {
	L.Push(lua.LNumber(s.preset.Bus.Length))
	return 1
}

func (s *scriptSession) luaDefaultFPS(L *lua.LState) int {
	L.Push(lua.LNumber(s.preset.Bus.DefaultFPS))
	return 1
}

// luaRegisterConfig implements register_config({key={type=..., default=...}, ...}),
// per spec.md §4.4 register_properties.
func (s *scriptSession) luaRegisterConfig(L *lua.LState) int {
	tbl := L.CheckTable(1)
	var descs []scriptconfig.Descriptor
	var rangeErr error
	tbl.ForEach(func(k, v lua.LValue) {
		if rangeErr != nil {
			return
		}
		key, ok := k.(lua.LString)
		if !ok {
			rangeErr = fmt.Errorf("register_config: non-string key")
			return
		}
		entry, ok := v.(*lua.LTable)
		if !ok {
			rangeErr = fmt.Errorf("register_config[%s]: expected a table", string(key))
			return
		}
		d, err := descriptorFromTable(string(key), entry)
		if err != nil {
			rangeErr = err
			return
		}
		descs = append(descs, d)
	})
	if rangeErr != nil {
		L.RaiseError("%v", rangeErr)
		return 0
	}
	if err := s.preset.RegisterProperties(descs); err != nil {
		L.RaiseError("register_config: %v", err)
		return 0
	}
	return 0
}

func descriptorFromTable(key string, t *lua.LTable) (scriptconfig.Descriptor, error) {
	typeName := lua.LVAsString(t.RawGetString("type"))
	typ, ok := configTypeNames[typeName]
	if !ok {
		return scriptconfig.Descriptor{}, fmt.Errorf("register_config[%s]: unknown type %q", key, typeName)
	}
	def := t.RawGetString("default")
	value, err := luaToConfigDefault(typ, def)
	if err != nil {
		return scriptconfig.Descriptor{}, fmt.Errorf("register_config[%s]: %v", key, err)
	}
	return scriptconfig.Descriptor{Key: key, Type: typ, Default: value}, nil
}

var configTypeNames = map[string]scriptconfig.Type{
	"bool":     scriptconfig.Bool,
	"s32":      scriptconfig.S32,
	"rgb":      scriptconfig.RGB,
	"float":    scriptconfig.Float,
	"profile":  scriptconfig.Profile,
	"list_u16": scriptconfig.ListU16,
	"list_s32": scriptconfig.ListS32,
	"list_rgb": scriptconfig.ListRGB,
	"set_u16":  scriptconfig.SetU16,
	"set_s32":  scriptconfig.SetS32,
	"set_rgb":  scriptconfig.SetRGB,
}

func luaToConfigDefault(typ scriptconfig.Type, v lua.LValue) (interface{}, error) {
	switch typ {
	case scriptconfig.Bool:
		return v == lua.LTrue, nil
	case scriptconfig.S32, scriptconfig.RGB, scriptconfig.Profile:
		n, ok := v.(lua.LNumber)
		if !ok {
			return int32(0), nil
		}
		return int32(n), nil
	case scriptconfig.Float:
		n, ok := v.(lua.LNumber)
		if !ok {
			return float64(0), nil
		}
		return float64(n), nil
	case scriptconfig.ListU16, scriptconfig.ListS32, scriptconfig.ListRGB,
		scriptconfig.SetU16, scriptconfig.SetS32, scriptconfig.SetRGB:
		t, ok := v.(*lua.LTable)
		if !ok {
			return []int64{}, nil
		}
		var out []int64
		for i := 1; i <= t.Len(); i++ {
			n, ok := t.RawGetInt(i).(lua.LNumber)
			if !ok {
				return nil, fmt.Errorf("list/set default element %d is not a number", i)
			}
			out = append(out, int64(n))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported default type")
}

// luaConfig implements config(key) -> value, per spec.md §4.4's
// accessor; sets/collections round-trip through Lua tables.
func (s *scriptSession) luaConfig(L *lua.LState) int {
	key := L.CheckString(1)
	v, ok := s.preset.Config.Value(key)
	if !ok {
		L.RaiseError("config: unknown key %q", key)
		return 0
	}
	L.Push(goConfigValueToLua(L, v))
	return 1
}

func goConfigValueToLua(L *lua.LState, v interface{}) lua.LValue {
	switch vv := v.(type) {
	case bool:
		return lua.LBool(vv)
	case int32:
		return lua.LNumber(vv)
	case float64:
		return lua.LNumber(vv)
	case []int64:
		t := L.NewTable()
		for i, n := range vv {
			t.RawSetInt(i+1, lua.LNumber(n))
		}
		return t
	}
	return lua.LNil
}

// luaConfigSet implements config_set(key, value), the operator-value
// mutation the "set" form of the console dispatch issues (the console
// itself is an external collaborator; this is the entry point it would
// call into).
func (s *scriptSession) luaConfigSet(L *lua.LState) int {
	key := L.CheckString(1)
	v := L.Get(2)
	var goVal interface{}
	switch vv := v.(type) {
	case lua.LBool:
		goVal = bool(vv)
	case lua.LNumber:
		typ, ok := s.preset.Config.KeyType(key)
		if ok && typ == scriptconfig.Float {
			goVal = float64(vv)
		} else {
			goVal = int32(vv)
		}
	default:
		L.RaiseError("config_set: unsupported value type for %q", key)
		return 0
	}
	if err := s.preset.Config.Set(key, goVal); err != nil {
		L.RaiseError("config_set: %v", err)
	}
	return 0
}

// outputFunc builds the Lua-callable for one of output_rgb/output_hsv/
// output_exp_hsv/output_defaults, all of which share spec.md §4.8's
// pipeline but differ only in Kind.
func (s *scriptSession) outputFunc(kind pipeline.Kind) lua.LGFunction {
	return func(L *lua.LState) int {
		var values pipeline.ScriptValue
		argBase := 1
		if kind != pipeline.SetDefaults {
			v, err := decodeScriptValue(L, L.Get(1))
			if err != nil {
				L.RaiseError("%v", err)
				return 0
			}
			values = v
			argBase = 2
		}

		opts := L.OptTable(argBase, L.NewTable())
		req := pipeline.Request{
			Values:     values,
			Kind:       kind,
			Profile:    s.preset.Bus.Profile,
			Reverse:    lua.LVAsBool(opts.RawGetString("reverse")),
			Repeat:     lua.LVAsBool(opts.RawGetString("repeat")),
			Rotate:     int(lua.LVAsNumber(opts.RawGetString("rotate"))),
			BusLength:  s.preset.Bus.Length,
			BufferSize: len(s.ledBuffer.Bytes()),
			DefaultFPS: s.preset.Bus.DefaultFPS,
		}
		if n, ok := opts.RawGetString("fps").(lua.LNumber); ok {
			req.Wait.FPS = int(n)
		}
		if n, ok := opts.RawGetString("wait_ms").(lua.LNumber); ok {
			req.Wait.WaitMs = int(n)
		}
		if n, ok := opts.RawGetString("wait_us").(lua.LNumber); ok {
			req.Wait.WaitUs = int(n)
		}

		result, err := pipeline.Render(req)
		if err != nil {
			L.RaiseError("%v", err)
			return 0
		}

		pipeline.WaitForDeadline(s.engine.Clock, s.prevFrameEndUs, result.WaitUs)
		if err := s.preset.Bus.StartTransmission(L.Context(), result.Bytes, s.preset.Reverse); err != nil {
			L.RaiseError("%v", err)
			return 0
		}
		s.preset.Bus.Finish()
		s.prevFrameEndUs = s.engine.Clock.NowUs()
		return 0
	}
}

// decodeScriptValue converts the Lua value passed as an output_*'s
// `values` argument into a pipeline.ScriptValue. Strings become raw
// byte arrays; a non-empty array-like table whose elements are all
// integers in 0..255 becomes an ArrayU8, and any other table becomes a
// Sequence of its decoded elements (numbers, or 1/2/3-tuples as
// Tuple1/Tuple2/Tuple3); a function value is treated as a
// STOP_ITERATION-terminated generator, per spec.md §4.8 step 2.
func decodeScriptValue(L *lua.LState, v lua.LValue) (pipeline.ScriptValue, error) {
	switch vv := v.(type) {
	case lua.LString:
		return pipeline.Bytes([]byte(vv)), nil
	case *lua.LFunction:
		return pipeline.Iterator(func() (pipeline.ScriptValue, bool) {
			L.Push(vv)
			if err := L.PCall(0, 1, nil); err != nil {
				return pipeline.ScriptValue{}, false
			}
			ret := L.Get(-1)
			L.Pop(1)
			if ret == lua.LNil {
				return pipeline.ScriptValue{}, false
			}
			item, err := decodeScriptItem(ret)
			if err != nil {
				return pipeline.ScriptValue{}, false
			}
			return item, true
		}), nil
	case *lua.LTable:
		n := vv.Len()
		seq := make([]pipeline.ScriptValue, 0, n)
		allByte := true
		u8 := make([]uint8, 0, n)
		for i := 1; i <= n; i++ {
			item, err := decodeScriptItem(vv.RawGetInt(i))
			if err != nil {
				return pipeline.ScriptValue{}, err
			}
			seq = append(seq, item)
			if item.Kind == pipeline.KindInt && item.Int >= 0 && item.Int <= 255 {
				u8 = append(u8, uint8(item.Int))
			} else {
				allByte = false
			}
		}
		if allByte && n > 0 {
			return pipeline.ArrayU8(u8), nil
		}
		return pipeline.Sequence(seq), nil
	}
	return pipeline.ScriptValue{}, fmt.Errorf("output: unsupported values type")
}

func decodeScriptItem(v lua.LValue) (pipeline.ScriptValue, error) {
	switch vv := v.(type) {
	case lua.LNumber:
		return pipeline.Int(int64(vv)), nil
	case *lua.LTable:
		n := vv.Len()
		switch n {
		case 1:
			a, err := decodeScriptItem(vv.RawGetInt(1))
			if err != nil {
				return pipeline.ScriptValue{}, err
			}
			return pipeline.Tuple1(a), nil
		case 2:
			a, err1 := decodeScriptItem(vv.RawGetInt(1))
			b, err2 := decodeScriptItem(vv.RawGetInt(2))
			if err1 != nil {
				return pipeline.ScriptValue{}, err1
			}
			if err2 != nil {
				return pipeline.ScriptValue{}, err2
			}
			return pipeline.Tuple2(a, b), nil
		case 3:
			a, err1 := decodeScriptItem(vv.RawGetInt(1))
			b, err2 := decodeScriptItem(vv.RawGetInt(2))
			c, err3 := decodeScriptItem(vv.RawGetInt(3))
			if err1 != nil {
				return pipeline.ScriptValue{}, err1
			}
			if err2 != nil {
				return pipeline.ScriptValue{}, err2
			}
			if err3 != nil {
				return pipeline.ScriptValue{}, err3
			}
			return pipeline.Tuple3(a, b, c), nil
		}
	}
	return pipeline.ScriptValue{}, fmt.Errorf("output: unsupported item shape")
}

func (s *scriptSession) luaHSVToRGBTuple(L *lua.LState) int {
	h := L.CheckInt(1)
	sat := L.CheckInt(2)
	val := L.CheckInt(3)
	rgb := color.HSVToRGB(h, sat, val)
	L.Push(lua.LNumber(rgb.R))
	L.Push(lua.LNumber(rgb.G))
	L.Push(lua.LNumber(rgb.B))
	return 3
}

func (s *scriptSession) luaRGBToHSVTuple(L *lua.LState) int {
	r := uint8(L.CheckInt(1))
	g := uint8(L.CheckInt(2))
	b := uint8(L.CheckInt(3))
	h, sat, val := color.RGBToHSV(r, g, b)
	L.Push(lua.LNumber(h))
	L.Push(lua.LNumber(sat))
	L.Push(lua.LNumber(val))
	return 3
}

// luaNextTicksMs returns the engine clock's current time in
// milliseconds, the monotonic tick source scripts use to pace their own
// animation state instead of a wall-clock date, per spec.md §6's
// "next_ticks_ms" scheduling helper.
func (s *scriptSession) luaNextTicksMs(L *lua.LState) int {
	L.Push(lua.LNumber(s.engine.Clock.NowUs() / 1000))
	return 1
}

// buildLoggingModule returns the ulogging table: getLogger(name) plus
// the named level constants, matching the script-facing surface of
// original_source's ulogging.py module.
func (s *scriptSession) buildLoggingModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	for name, lvl := range map[string]aurcorlog.Level{
		"TRACE": aurcorlog.TRACE, "DEBUG": aurcorlog.DEBUG, "INFO": aurcorlog.INFO,
		"NOTICE": aurcorlog.NOTICE, "WARNING": aurcorlog.WARNING, "ERROR": aurcorlog.ERROR,
		"CRITICAL": aurcorlog.CRITICAL,
	} {
		mod.RawSetString(name, lua.LNumber(lvl))
	}
	mod.RawSetString("getLogger", L.NewFunction(func(L *lua.LState) int {
		name := L.OptString(1, s.preset.Name)
		logger := aurcorlog.New(name, s.log)
		L.Push(buildLoggerHandle(L, logger))
		return 1
	}))
	return mod
}

func buildLoggerHandle(L *lua.LState, logger *aurcorlog.Logger) *lua.LTable {
	handle := L.NewTable()
	bind := func(fn func(string, ...interface{})) lua.LGFunction {
		return func(L *lua.LState) int {
			fn("%s", L.CheckString(1))
			return 0
		}
	}
	handle.RawSetString("debug", L.NewFunction(bind(logger.Debug)))
	handle.RawSetString("info", L.NewFunction(bind(logger.Info)))
	handle.RawSetString("warning", L.NewFunction(bind(logger.Warning)))
	handle.RawSetString("error", L.NewFunction(bind(logger.Error)))
	handle.RawSetString("critical", L.NewFunction(bind(logger.Critical)))
	handle.RawSetString("setLevel", L.NewFunction(func(L *lua.LState) int {
		logger.SetLevel(aurcorlog.Level(L.CheckInt(1)))
		return 0
	}))
	return handle
}
