package budget

import (
	"github.com/smallbiznis/commission/internal/budget/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("budget.repository",
	fx.Provide(repository.Provide),
)
