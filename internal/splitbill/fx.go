package splitbill

import (
	"github.com/prontocore/kitchen/internal/splitbill/repository"
	"github.com/prontocore/kitchen/internal/splitbill/service"
	"go.uber.org/fx"
)

var Module = fx.Module("splitbill.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
