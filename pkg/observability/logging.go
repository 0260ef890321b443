package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/dispenser/pkg/domain"
)

// LoggingHooks writes one debug record per lifecycle event.
// Notices are already logged by the machine itself, so they are skipped here.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "transition",
				"machine_id", e.MachineID,
				"trigger", e.Trigger,
				"from", e.From,
				"to", e.To,
			)
		},
		OnDispense: func(ctx context.Context, e *domain.DispenseEvent) {
			logger.DebugContext(ctx, "dispense",
				"machine_id", e.MachineID,
				"inventory", e.Inventory,
			)
		},
		OnReject: func(ctx context.Context, e *domain.DispenseEvent) {
			logger.DebugContext(ctx, "reject",
				"machine_id", e.MachineID,
				"reason", e.Result.Reason,
			)
		},
		OnRefill: func(ctx context.Context, e *domain.RefillEvent) {
			logger.DebugContext(ctx, "refill",
				"machine_id", e.MachineID,
				"previous", e.Previous,
				"inventory", e.Inventory,
			)
		},
	}
}
