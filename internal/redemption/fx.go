package redemption

import (
	"github.com/anishghanwat/storemybottle/internal/redemption/service"
	"go.uber.org/fx"
)

var Module = fx.Module("redemption.service",
	fx.Provide(service.NewService),
)
