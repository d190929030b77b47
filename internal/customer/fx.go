package customer

import (
	"github.com/prontocore/kitchen/internal/customer/repository"
	"github.com/prontocore/kitchen/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
