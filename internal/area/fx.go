package area

import (
	"github.com/prontocore/kitchen/internal/area/repository"
	"github.com/prontocore/kitchen/internal/area/service"
	"go.uber.org/fx"
)

var Module = fx.Module("area.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
