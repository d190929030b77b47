package table

import (
	"github.com/prontocore/kitchen/internal/table/repository"
	"github.com/prontocore/kitchen/internal/table/service"
	"go.uber.org/fx"
)

var Module = fx.Module("table.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
