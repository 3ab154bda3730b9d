package processing

import (
	"github.com/smallbiznis/salesledger/internal/processing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("processing.service",
	fx.Provide(service.NewService),
)
