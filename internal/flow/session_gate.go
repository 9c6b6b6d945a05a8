package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/withinyouai/claritycore/internal/models"
	"github.com/withinyouai/claritycore/internal/store"
)

// DefaultFreeSessionLimit is the number of discovery sessions a free-tier
// device may complete.
const DefaultFreeSessionLimit = 1

// SessionLimitMessage is shown when the gate denies a new session.
const SessionLimitMessage = "You've already used your free discovery session. Upgrade to Premium for unlimited access and your complete transformation roadmap!"

// SessionGate decides whether a device may start a new discovery session.
// The counter is per-device, not per-identity; concurrent tabs racing on the
// counter is an accepted edge case.
type SessionGate struct {
	store store.Store
	limit int
}

// NewSessionGate creates a gate over the given store. A non-positive limit
// falls back to DefaultFreeSessionLimit.
func NewSessionGate(st store.Store, limit int) *SessionGate {
	if limit <= 0 {
		limit = DefaultFreeSessionLimit
	}
	return &SessionGate{store: st, limit: limit}
}

// CanStart reports whether the device may begin a session under its plan.
// Premium always passes. If the counter is unreadable the gate fails open.
func (g *SessionGate) CanStart(ctx context.Context, deviceID string, plan models.PlanTier) bool {
	if plan == models.PlanPremium {
		return true
	}
	counter, err := g.store.GetSessionCounter(deviceID)
	if err != nil {
		slog.Warn("SessionGate.CanStart: counter unreadable, failing open", "error", err, "deviceID", deviceID)
		return true
	}
	if counter == nil {
		return true
	}
	allowed := counter.Count < g.limit
	slog.Debug("SessionGate.CanStart: counter checked", "deviceID", deviceID, "count", counter.Count, "limit", g.limit, "allowed", allowed)
	return allowed
}

// RecordCompletion increments the device counter. Called exactly once per
// completed session, at the final-answer transition.
func (g *SessionGate) RecordCompletion(ctx context.Context, deviceID string) error {
	if err := g.store.IncrementSessionCounter(deviceID, time.Now()); err != nil {
		slog.Error("SessionGate.RecordCompletion: increment failed", "error", err, "deviceID", deviceID)
		return err
	}
	slog.Info("SessionGate.RecordCompletion: session recorded", "deviceID", deviceID)
	return nil
}
