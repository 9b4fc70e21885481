package marshal

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// ArrayOf builds the codec for []T. Element i of the slice is table index i+1.
func ArrayOf[T any](elem Codec[T]) Codec[[]T] {
	return arrayCodec[T]{elem: elem}
}

type arrayCodec[T any] struct {
	elem Codec[T]
}

func (c arrayCodec[T]) Shape() string { return "array of " + c.elem.Shape() }

func (c arrayCodec[T]) Encode(env *Env, vs []T) lua.LValue {
	t := env.L.CreateTable(len(vs), 0)
	for i, v := range vs {
		t.RawSetInt(i+1, c.elem.Encode(env, v))
	}
	return env.seal(t)
}

func (c arrayCodec[T]) Decode(v lua.LValue) ([]T, error) {
	if v == lua.LNil {
		return nil, missing(c.Shape())
	}
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil, mismatch(c.Shape(), v.Type().String())
	}
	n := t.Len()
	out := make([]T, 0, n)
	for i := 1; i <= n; i++ {
		e, err := c.elem.Decode(t.RawGetInt(i))
		if err != nil {
			return nil, Within(err, fmt.Sprintf("[%d]", i))
		}
		out = append(out, e)
	}
	return out, nil
}

// MapOf builds the codec for map[string]T.
func MapOf[T any](elem Codec[T]) Codec[map[string]T] {
	return mapCodec[T]{elem: elem}
}

type mapCodec[T any] struct {
	elem Codec[T]
}

func (c mapCodec[T]) Shape() string { return "map of " + c.elem.Shape() }

func (c mapCodec[T]) Encode(env *Env, m map[string]T) lua.LValue {
	t := env.L.CreateTable(0, len(m))
	for k, v := range m {
		t.RawSetString(k, c.elem.Encode(env, v))
	}
	return env.seal(t)
}

func (c mapCodec[T]) Decode(v lua.LValue) (map[string]T, error) {
	if v == lua.LNil {
		return nil, missing(c.Shape())
	}
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil, mismatch(c.Shape(), v.Type().String())
	}
	out := make(map[string]T)
	var err error
	t.ForEach(func(k, val lua.LValue) {
		if err != nil {
			return
		}
		ks, ok := k.(lua.LString)
		if !ok {
			err = mismatch("string key", k.Type().String())
			return
		}
		e, derr := c.elem.Decode(val)
		if derr != nil {
			err = Within(derr, "."+string(ks))
			return
		}
		out[string(ks)] = e
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
