package assignment

import (
	"github.com/prontocore/kitchen/internal/assignment/domain"
	"github.com/prontocore/kitchen/internal/assignment/repository"
	"github.com/prontocore/kitchen/internal/assignment/service"
	orderdomain "github.com/prontocore/kitchen/internal/order/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("assignment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	// Exposes the engine as order.domain.TableAssignmentHook so order.service
	// can take it as an optional dependency without importing this package.
	fx.Provide(func(s domain.Service) orderdomain.TableAssignmentHook { return s }),
)
