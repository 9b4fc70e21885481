package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jward/automaple/internal/marshal"
)

// World is the game state a Backend serves. It can be loaded from YAML so
// scripts can be exercised offline against a fixed map.
type World struct {
	MapID     int                    `yaml:"map_id"`
	ItemCount int                    `yaml:"item_count"`
	Position  Point                  `yaml:"position"`
	Map       Rect                   `yaml:"map"`
	Mobs      []Point                `yaml:"mobs"`
	Ropes     []Rect                 `yaml:"ropes"`
	Portals   []marshal.NamedCount   `yaml:"portals"`
	Char      marshal.CharacterStats `yaml:"char"`
	Inventory marshal.Inventory      `yaml:"inventory"`
}

// Point and Rect mirror the marshal records with YAML tags.
type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

type Rect struct {
	Left   int `yaml:"left"`
	Right  int `yaml:"right"`
	Top    int `yaml:"top"`
	Bottom int `yaml:"bottom"`
}

func (p Point) native() marshal.Point { return marshal.Point{X: p.X, Y: p.Y} }

func (r Rect) native() marshal.Rect {
	return marshal.Rect{Left: r.Left, Right: r.Right, Top: r.Top, Bottom: r.Bottom}
}

// DefaultWorld is a small training map with two mobs and one rope.
func DefaultWorld() World {
	return World{
		MapID:     100000000,
		ItemCount: 3,
		Position:  Point{X: 0, Y: 0},
		Map:       Rect{Left: -500, Right: 500, Top: -300, Bottom: 300},
		Mobs:      []Point{{X: 120, Y: 0}, {X: -40, Y: 0}},
		Ropes:     []Rect{{Left: 200, Right: 200, Top: -250, Bottom: 0}},
		Portals:   []marshal.NamedCount{{"x": 450, "y": 0, "target": 100000001}},
		Char:      marshal.CharacterStats{"hp": 500, "mp": 200, "level": 30},
		Inventory: marshal.Inventory{
			{{"id": 2000000, "count": 50}},
			{},
		},
	}
}

// LoadWorld reads a World from a YAML file. Fields the file leaves out keep
// their DefaultWorld values.
func LoadWorld(path string) (World, error) {
	w := DefaultWorld()
	data, err := os.ReadFile(path)
	if err != nil {
		return w, fmt.Errorf("sim: reading world file: %w", err)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return w, fmt.Errorf("sim: parsing world file: %w", err)
	}
	return w, nil
}
