// Package api is the native operation table exposed to scripts and the
// generic dispatcher that interprets it.
//
// A Descriptor binds a name to argument shapes, a native call and an optional
// return shape. The typed constructors (Proc1, Func2, ...) declare each native
// signature once and erase it into a Descriptor; the Dispatcher never knows
// which operation it is running.
package api

import (
	"context"
	"strings"

	"github.com/jward/automaple/internal/marshal"
)

// Call is a type-erased native operation. args are already decoded, in
// declaration order.
type Call func(ctx context.Context, args []any) (any, error)

// Descriptor describes one native operation.
type Descriptor struct {
	Name    string
	Args    []marshal.Shape
	Returns marshal.Shape // nil when the operation returns nothing
	Call    Call
}

// Signature renders the descriptor as "Name(arg, ...) -> ret".
func (d Descriptor) Signature() string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteByte('(')
	for i, a := range d.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.Shape())
	}
	b.WriteByte(')')
	if d.Returns != nil {
		b.WriteString(" -> ")
		b.WriteString(d.Returns.Shape())
	}
	return b.String()
}

func Proc0(name string, fn func(context.Context) error) Descriptor {
	return Descriptor{
		Name: name,
		Call: func(ctx context.Context, _ []any) (any, error) {
			return nil, fn(ctx)
		},
	}
}

func Proc1[A any](name string, a marshal.Codec[A], fn func(context.Context, A) error) Descriptor {
	return Descriptor{
		Name: name,
		Args: []marshal.Shape{marshal.Erase(a)},
		Call: func(ctx context.Context, args []any) (any, error) {
			return nil, fn(ctx, args[0].(A))
		},
	}
}

func Proc2[A, B any](name string, a marshal.Codec[A], b marshal.Codec[B], fn func(context.Context, A, B) error) Descriptor {
	return Descriptor{
		Name: name,
		Args: []marshal.Shape{marshal.Erase(a), marshal.Erase(b)},
		Call: func(ctx context.Context, args []any) (any, error) {
			return nil, fn(ctx, args[0].(A), args[1].(B))
		},
	}
}

func Func0[R any](name string, r marshal.Codec[R], fn func(context.Context) (R, error)) Descriptor {
	return Descriptor{
		Name:    name,
		Returns: marshal.Erase(r),
		Call: func(ctx context.Context, _ []any) (any, error) {
			return fn(ctx)
		},
	}
}

func Func1[A, R any](name string, a marshal.Codec[A], r marshal.Codec[R], fn func(context.Context, A) (R, error)) Descriptor {
	return Descriptor{
		Name:    name,
		Args:    []marshal.Shape{marshal.Erase(a)},
		Returns: marshal.Erase(r),
		Call: func(ctx context.Context, args []any) (any, error) {
			return fn(ctx, args[0].(A))
		},
	}
}

func Func2[A, B, R any](name string, a marshal.Codec[A], b marshal.Codec[B], r marshal.Codec[R], fn func(context.Context, A, B) (R, error)) Descriptor {
	return Descriptor{
		Name:    name,
		Args:    []marshal.Shape{marshal.Erase(a), marshal.Erase(b)},
		Returns: marshal.Erase(r),
		Call: func(ctx context.Context, args []any) (any, error) {
			return fn(ctx, args[0].(A), args[1].(B))
		},
	}
}

func Func3[A, B, C, R any](name string, a marshal.Codec[A], b marshal.Codec[B], c marshal.Codec[C], r marshal.Codec[R], fn func(context.Context, A, B, C) (R, error)) Descriptor {
	return Descriptor{
		Name:    name,
		Args:    []marshal.Shape{marshal.Erase(a), marshal.Erase(b), marshal.Erase(c)},
		Returns: marshal.Erase(r),
		Call: func(ctx context.Context, args []any) (any, error) {
			return fn(ctx, args[0].(A), args[1].(B), args[2].(C))
		},
	}
}
