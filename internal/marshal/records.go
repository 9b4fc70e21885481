package marshal

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Point is a position in map coordinates.
type Point struct {
	X, Y int
}

// Rect is an axis-aligned area. Scripts see it as two corner points,
// {Left, Bottom} then {Right, Top}.
type Rect struct {
	Left, Right, Top, Bottom int
}

// NamedCount maps a name (item, slot, stat) to a count.
type NamedCount = map[string]int

// CharacterStats is the character sheet as name → value.
type CharacterStats = map[string]int

// Inventory is one array of slots per inventory tab.
type Inventory = [][]NamedCount

var (
	PointCodec     Codec[Point] = pointCodec{}
	RectCodec      Codec[Rect]  = rectCodec{corners: ArrayOf(PointCodec)}
	NamedCountCodec             = MapOf(Int)
	StatsCodec                  = MapOf(Int)
	InventoryCodec              = ArrayOf(ArrayOf(NamedCountCodec))
	IntList                     = ArrayOf(Int)
	Adjacency                   = ArrayOf(ArrayOf(Int))
)

type pointCodec struct{}

func (pointCodec) Shape() string { return "point" }

func (pointCodec) Encode(env *Env, p Point) lua.LValue {
	t := env.L.CreateTable(0, 2)
	t.RawSetString("x", lua.LNumber(p.X))
	t.RawSetString("y", lua.LNumber(p.Y))
	return env.seal(t)
}

func (pointCodec) Decode(v lua.LValue) (Point, error) {
	if v == lua.LNil {
		return Point{}, missing("point")
	}
	t, ok := v.(*lua.LTable)
	if !ok {
		return Point{}, mismatch("point", v.Type().String())
	}
	x, err := Int.Decode(t.RawGetString("x"))
	if err != nil {
		return Point{}, Within(err, ".x")
	}
	y, err := Int.Decode(t.RawGetString("y"))
	if err != nil {
		return Point{}, Within(err, ".y")
	}
	return Point{X: x, Y: y}, nil
}

type rectCodec struct {
	corners Codec[[]Point]
}

func (rectCodec) Shape() string { return "rect" }

func (c rectCodec) Encode(env *Env, r Rect) lua.LValue {
	return c.corners.Encode(env, []Point{
		{X: r.Left, Y: r.Bottom},
		{X: r.Right, Y: r.Top},
	})
}

func (c rectCodec) Decode(v lua.LValue) (Rect, error) {
	if v == lua.LNil {
		return Rect{}, missing("rect")
	}
	ps, err := c.corners.Decode(v)
	if err != nil {
		return Rect{}, err
	}
	if len(ps) != 2 {
		return Rect{}, mismatch("rect (2 corner points)", fmt.Sprintf("%d points", len(ps)))
	}
	return Rect{Left: ps[0].X, Bottom: ps[0].Y, Right: ps[1].X, Top: ps[1].Y}, nil
}
