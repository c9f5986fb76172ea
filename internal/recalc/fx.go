package recalc

import "go.uber.org/fx"

var Module = fx.Module("recalc.trigger",
	fx.Provide(
		NewRedisClient,
		NewLocker,
		provideBatchLock,
		NewTrigger,
	),
)
