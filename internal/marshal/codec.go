// Package marshal converts between native composite values and Lua values.
//
// Every native shape has a Codec: an encode/decode pair. Composite codecs are
// built from their components with ArrayOf and MapOf, so the inventory shape
// (an array of arrays of name→count maps) is three compositions of Int rather
// than a dedicated converter.
//
// Tables produced by Encode are handed to Env.Guard before they are returned,
// which is how the access interceptor gets attached to every value a script
// can see. Decode uses raw table access and never triggers a guard.
package marshal

import (
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"
)

// Guard attaches undefined-field protection to a freshly built table.
type Guard interface {
	Guard(L *lua.LState, t *lua.LTable)
}

// Env is the encoding context: the Lua state that owns new tables and the
// guard applied to each of them.
type Env struct {
	L     *lua.LState
	Guard Guard
}

// NewEnv returns an Env for L. A nil guard leaves tables unprotected, which is
// only useful in tests.
func NewEnv(L *lua.LState, g Guard) *Env {
	return &Env{L: L, Guard: g}
}

func (e *Env) seal(t *lua.LTable) *lua.LTable {
	if e.Guard != nil {
		e.Guard.Guard(e.L, t)
	}
	return t
}

// Codec converts one native type to and from its script representation.
type Codec[T any] interface {
	Encode(env *Env, v T) lua.LValue
	Decode(v lua.LValue) (T, error)
	Shape() string
}

// Shape is a type-erased Codec, used by API descriptors to declare argument
// and return shapes in a single table.
type Shape interface {
	Shape() string
	DecodeAny(v lua.LValue) (any, error)
	EncodeAny(env *Env, v any) (lua.LValue, error)
}

// Erase wraps c as a Shape.
func Erase[T any](c Codec[T]) Shape {
	return erased[T]{c: c}
}

type erased[T any] struct {
	c Codec[T]
}

func (e erased[T]) Shape() string { return e.c.Shape() }

func (e erased[T]) DecodeAny(v lua.LValue) (any, error) {
	return e.c.Decode(v)
}

func (e erased[T]) EncodeAny(env *Env, v any) (lua.LValue, error) {
	tv, ok := v.(T)
	if !ok {
		return lua.LNil, fmt.Errorf("marshal: %s encoder got %T", e.c.Shape(), v)
	}
	return e.c.Encode(env, tv), nil
}

// --- scalars ---

var (
	Int    Codec[int]     = intCodec{}
	Number Codec[float64] = numberCodec{}
	Bool   Codec[bool]    = boolCodec{}
	String Codec[string]  = stringCodec{}
)

type intCodec struct{}

func (intCodec) Shape() string { return "integer" }

func (intCodec) Encode(_ *Env, v int) lua.LValue { return lua.LNumber(v) }

func (intCodec) Decode(v lua.LValue) (int, error) {
	if v == lua.LNil {
		return 0, missing("integer")
	}
	n, ok := v.(lua.LNumber)
	if !ok {
		return 0, mismatch("integer", v.Type().String())
	}
	f := float64(n)
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, mismatch("integer", "number "+n.String())
	}
	return int(f), nil
}

type numberCodec struct{}

func (numberCodec) Shape() string { return "number" }

func (numberCodec) Encode(_ *Env, v float64) lua.LValue { return lua.LNumber(v) }

func (numberCodec) Decode(v lua.LValue) (float64, error) {
	if v == lua.LNil {
		return 0, missing("number")
	}
	n, ok := v.(lua.LNumber)
	if !ok {
		return 0, mismatch("number", v.Type().String())
	}
	return float64(n), nil
}

type boolCodec struct{}

func (boolCodec) Shape() string { return "boolean" }

func (boolCodec) Encode(_ *Env, v bool) lua.LValue { return lua.LBool(v) }

func (boolCodec) Decode(v lua.LValue) (bool, error) {
	if v == lua.LNil {
		return false, missing("boolean")
	}
	b, ok := v.(lua.LBool)
	if !ok {
		return false, mismatch("boolean", v.Type().String())
	}
	return bool(b), nil
}

// stringCodec accepts numbers as well, matching Lua's own string coercion.
type stringCodec struct{}

func (stringCodec) Shape() string { return "string" }

func (stringCodec) Encode(_ *Env, v string) lua.LValue { return lua.LString(v) }

func (stringCodec) Decode(v lua.LValue) (string, error) {
	switch s := v.(type) {
	case lua.LString:
		return string(s), nil
	case lua.LNumber:
		return s.String(), nil
	}
	if v == lua.LNil {
		return "", missing("string")
	}
	return "", mismatch("string", v.Type().String())
}
