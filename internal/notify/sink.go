package notify

import (
	"go.uber.org/zap"

	"priceduel/internal/round"
)

// Multi publishes every event to each of the given sinks in order.
func Multi(sinks ...round.Sink) round.Sink {
	return multiSink(sinks)
}

type multiSink []round.Sink

func (m multiSink) Publish(e round.Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(e)
		}
	}
}

// LogSink writes every event to the structured log.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Publish(e round.Event) {
	if s.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.Int64("round", e.Round),
		zap.Time("at", e.At),
	}
	switch e.Kind {
	case round.EventPhaseChanged:
		fields = append(fields, zap.String("phase", string(e.Phase)))
	case round.EventBetPlaced:
		fields = append(fields,
			zap.String("bet", e.BetID),
			zap.String("participant", e.Participant),
			zap.String("direction", string(e.Direction)),
			zap.String("amount", e.Amount.String()),
		)
	case round.EventAllocationDecided:
		fields = append(fields,
			zap.String("bet", e.BetID),
			zap.String("status", string(e.Status)),
		)
	case round.EventRoundSettled:
		fields = append(fields,
			zap.String("bet", e.BetID),
			zap.String("result", string(e.Result)),
		)
		if e.Profit != nil {
			fields = append(fields, zap.String("profit", e.Profit.String()))
		}
	}
	s.Logger.Info(string(e.Kind), fields...)
}
