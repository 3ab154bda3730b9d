package ledgertx

import (
	"github.com/smallbiznis/salesledger/internal/ledgertx/domain"
	"github.com/smallbiznis/salesledger/internal/ledgertx/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("ledgertx",
	fx.Provide(repository.NewRepository),
	fx.Provide(domain.NewRandomSuffixGenerator),
)
