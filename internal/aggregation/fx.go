package aggregation

import (
	aggregationdomain "github.com/smallbiznis/salesledger/internal/aggregation/domain"
	"github.com/smallbiznis/salesledger/internal/aggregation/service"
	"github.com/smallbiznis/salesledger/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("aggregation",
	fx.Provide(func(h *config.RulesHolder) aggregationdomain.RulesSource { return h }),
	fx.Provide(service.NewFactory),
)
