package clock

import "go.uber.org/fx"

// Module provides the production Clock. Tests construct FakeClock directly
// instead of going through fx.
var Module = fx.Module("clock",
	fx.Provide(func() Clock { return NewReal() }),
)
