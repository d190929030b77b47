package employee

import (
	"github.com/prontocore/kitchen/internal/employee/repository"
	"github.com/prontocore/kitchen/internal/employee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("employee.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
