package automaple

import (
	"github.com/jward/automaple/internal/api"
	"github.com/jward/automaple/internal/intercept"
	"github.com/jward/automaple/internal/marshal"
	"github.com/jward/automaple/internal/store"
)

// Public type aliases for internal types that appear in the Controller API.
// These are Go type aliases (=), identical to the internal types.

type Primitives = api.Primitives
type Notifier = api.Notifier
type Descriptor = api.Descriptor
type Diagnostic = intercept.Diagnostic
type Point = marshal.Point
type Rect = marshal.Rect
type Session = store.Session
type Call = store.Call
