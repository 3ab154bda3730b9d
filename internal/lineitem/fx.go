package lineitem

import (
	"github.com/smallbiznis/salesledger/internal/lineitem/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("lineitem",
	fx.Provide(repository.NewRepository),
)
