package order

import (
	"github.com/prontocore/kitchen/internal/order/repository"
	"github.com/prontocore/kitchen/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideModifications),
	fx.Provide(service.New),
	fx.Provide(service.NewModificationService),
)
