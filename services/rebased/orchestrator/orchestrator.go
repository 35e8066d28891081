// Package orchestrator triggers rebases on behalf of the configured
// orchestrator identity whenever the rebase window is open.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rebasechain/native/policy"
)

// Engine is the subset of the rebase engine the scheduler drives.
type Engine interface {
	InRebaseWindow() bool
	Rebase(ctx context.Context, caller ethcommon.Address) (policy.RebaseResult, error)
}

// Scheduler polls the rebase window and calls Rebase when it is open.
type Scheduler struct {
	engine   Engine
	identity ethcommon.Address
	interval time.Duration
	tracer   trace.Tracer
}

// New constructs a scheduler acting as identity.
func New(engine Engine, identity ethcommon.Address, interval time.Duration) (*Scheduler, error) {
	if engine == nil {
		return nil, fmt.Errorf("orchestrator: engine required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("orchestrator: poll interval must be positive")
	}
	return &Scheduler{
		engine:   engine,
		identity: identity,
		interval: interval,
		tracer:   otel.Tracer("rebased/orchestrator"),
	}, nil
}

// Run blocks, ticking until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	slog.Info("orchestrator: scheduler started", "identity", s.identity.Hex(), "interval", s.interval.String())
	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			slog.Error("orchestrator: rebase failed", "error", err, "reason", policy.Outcome(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick attempts at most one rebase. It reports whether a rebase was applied.
// Closed windows and rebases already applied in the current window are not
// errors.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	if !s.engine.InRebaseWindow() {
		return false, nil
	}
	ctx, span := s.tracer.Start(ctx, "orchestrator.tick")
	defer span.End()

	result, err := s.engine.Rebase(ctx, s.identity)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Int64("epoch", int64(result.Epoch)))
		slog.Info("orchestrator: rebase triggered", "epoch", result.Epoch, "supply_delta", result.SupplyDelta.String())
		return true, nil
	case errors.Is(err, policy.ErrTooSoon), errors.Is(err, policy.ErrNotInWindow):
		slog.Debug("orchestrator: rebase skipped", "reason", policy.Outcome(err))
		return false, nil
	default:
		span.RecordError(err)
		return false, err
	}
}
