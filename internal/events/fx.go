package events

import "go.uber.org/fx"

var Module = fx.Module("events",
	fx.Provide(
		NewOutbox,
		fx.Annotate(
			func(o *Outbox) *Outbox { return o },
			fx.As(new(Publisher)),
		),
		NewLogSink,
		NewRelay,
	),
	fx.Invoke(runRelay),
)
