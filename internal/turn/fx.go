package turn

import (
	"github.com/smallbiznis/commission/internal/turn/repository"
	"github.com/smallbiznis/commission/internal/turn/service"
	"go.uber.org/fx"
)

var Module = fx.Module("turn.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
