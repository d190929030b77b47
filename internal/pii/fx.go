package pii

import "go.uber.org/fx"

var Module = fx.Module("pii",
	fx.Provide(NewKeySource),
)
