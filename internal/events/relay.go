package events

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	relayInterval  = 5 * time.Second
	relayBatchSize = 100
)

// Sink receives outbox events. The default sink writes them to the log.
type Sink interface {
	Deliver(ctx context.Context, event MemberEvent) error
}

type logSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) Sink {
	return &logSink{log: log.Named("events.sink")}
}

func (s *logSink) Deliver(ctx context.Context, event MemberEvent) error {
	s.log.Info("member event",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", event.EventType),
		zap.String("member_id", event.MemberID),
		zap.Any("payload", map[string]any(event.Payload)),
	)
	return nil
}

type Relay struct {
	outbox *Outbox
	sink   Sink
	log    *zap.Logger
}

func NewRelay(outbox *Outbox, sink Sink, log *zap.Logger) *Relay {
	return &Relay{outbox: outbox, sink: sink, log: log.Named("events.relay")}
}

// Drain delivers one batch of pending events and marks the delivered ones
// published. Delivery stops at the first failure to keep ordering.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	pending, err := r.outbox.Pending(ctx, relayBatchSize)
	if err != nil {
		return 0, err
	}

	delivered := make([]MemberEvent, 0, len(pending))
	var deliverErr error
	for _, ev := range pending {
		if deliverErr = r.sink.Deliver(ctx, ev); deliverErr != nil {
			break
		}
		delivered = append(delivered, ev)
	}

	ids := make([]snowflake.ID, 0, len(delivered))
	for _, ev := range delivered {
		ids = append(ids, ev.ID)
	}
	if err := r.outbox.MarkPublished(ctx, ids); err != nil {
		return 0, err
	}
	return len(delivered), deliverErr
}

func runRelay(lc fx.Lifecycle, relay *Relay) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(relayInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if n, err := relay.Drain(ctx); err != nil {
							relay.log.Warn("outbox drain failed", zap.Int("delivered", n), zap.Error(err))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
