package waitercall

import (
	"github.com/prontocore/kitchen/internal/waitercall/repository"
	"github.com/prontocore/kitchen/internal/waitercall/service"
	"go.uber.org/fx"
)

var Module = fx.Module("waitercall.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
