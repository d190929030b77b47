package diningsession

import (
	"github.com/prontocore/kitchen/internal/diningsession/domain"
	"github.com/prontocore/kitchen/internal/diningsession/repository"
	"github.com/prontocore/kitchen/internal/diningsession/service"
	orderdomain "github.com/prontocore/kitchen/internal/order/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("diningsession.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	// Exposes the coordinator as order.domain.SessionRecomputeHook so
	// order.service can take it as an optional dependency without importing
	// this package.
	fx.Provide(func(s domain.Service) orderdomain.SessionRecomputeHook { return s }),
)
