package server

import (
	"log/slog"
	"math/big"

	"aurora/core/events"
	"aurora/core/types"
)

// eventBuffer collects engine events during one staged operation. Nothing is
// logged or counted until the overlay commits.
type eventBuffer struct {
	events []events.Event
}

func newEventBuffer() *eventBuffer {
	return &eventBuffer{}
}

// Emit implements events.Emitter.
func (b *eventBuffer) Emit(evt events.Event) {
	b.events = append(b.events, evt)
}

// flushEvents publishes buffered events to the structured log and folds them
// into the Prometheus counters.
func (s *Server) flushEvents(buffer *eventBuffer) {
	for _, evt := range buffer.events {
		s.logEvent(evt)
		s.countEvent(evt)
	}
}

func (s *Server) logEvent(evt events.Event) {
	type payload interface {
		Event() *types.Event
	}
	args := []any{slog.String("type", evt.EventType())}
	if typed, ok := evt.(payload); ok {
		if full := typed.Event(); full != nil {
			for key, value := range full.Attributes {
				args = append(args, slog.String(key, value))
			}
		}
	}
	s.logger.Info("ledger event", args...)
}

func (s *Server) countEvent(evt events.Event) {
	switch e := evt.(type) {
	case events.AssetUnlocked:
		s.metrics.AddExitFee(bigFloat(e.Fee))
	case events.RewardClaimed:
		s.metrics.AddRewardsPaid(bigFloat(e.Paid))
	case events.CarryOverDrained:
		s.metrics.AddRewardsPaid(bigFloat(e.Paid))
		s.metrics.SetCarryOver(bigFloat(e.Remainder))
	case events.AssetUnstaked:
		s.metrics.AddRewardsPaid(bigFloat(e.Paid))
		if e.CarryOver != nil && e.CarryOver.Sign() > 0 {
			s.metrics.SetCarryOver(bigFloat(e.CarryOver))
		}
	case events.BatchDisbursed:
		if e.Partial {
			s.metrics.IncPartialFill("allocator")
		}
	case events.MerkleClaimed:
		s.metrics.IncMerkleClaim(e.Namespace)
		s.metrics.AddRewardsPaid(bigFloat(e.Paid))
	}
}

func bigFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	out, _ := new(big.Float).SetInt(value).Float64()
	return out
}
