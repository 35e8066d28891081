package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rebasechain/core/events"
	"rebasechain/observability/metrics"
)

// Ledger is the token ledger the engine instructs. Rebase applies delta to the
// total supply and returns the resulting supply. Implementations must not call
// back into the Engine.
type Ledger interface {
	TotalSupply() (*big.Int, error)
	Rebase(epoch uint64, delta *big.Int) (*big.Int, error)
}

// StateStore persists the policy state across restarts.
type StateStore interface {
	LoadPolicyState() (*State, bool, error)
	SavePolicyState(state *State) error
}

// RebaseResult mirrors the emitted rebase event.
type RebaseResult struct {
	Epoch         uint64
	InflationRate uint64
	SupplyDelta   *big.Int
	TimestampSec  uint64
}

// Engine is the rebase decision engine. All operations are serialised by a
// single mutex; Rebase holds it across the ledger call.
type Engine struct {
	mu      sync.Mutex
	state   *State
	ledger  Ledger
	store   StateStore
	emitter events.Emitter
	nowFn   func() time.Time
	metrics *metrics.PolicyMetrics
	tracer  trace.Tracer
}

// Option customises an Engine at initialisation.
type Option func(*Engine)

// WithStore persists state through store and restores any state it holds.
func WithStore(store StateStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithEmitter sets the destination of rebase events.
func WithEmitter(emitter events.Emitter) Option {
	return func(e *Engine) {
		if emitter != nil {
			e.emitter = emitter
		}
	}
}

// WithNowFunc overrides the engine clock.
func WithNowFunc(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.nowFn = now
		}
	}
}

// WithMetrics overrides the metrics registry. A nil registry disables metrics.
func WithMetrics(m *metrics.PolicyMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Initialize builds an engine for admin bound to ledger with default policy
// parameters. When a store holding a previous state is supplied, that state is
// restored instead.
func Initialize(admin ethcommon.Address, ledger Ledger, opts ...Option) (*Engine, error) {
	if ledger == nil {
		return nil, fmt.Errorf("%w: ledger required", ErrNotInitialised)
	}
	engine := &Engine{
		state:   DefaultState(admin),
		ledger:  ledger,
		emitter: events.NoopEmitter{},
		nowFn:   func() time.Time { return time.Now().UTC() },
		metrics: metrics.Policy(),
		tracer:  otel.Tracer("policy"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	if engine.store != nil {
		stored, ok, err := engine.store.LoadPolicyState()
		if err != nil {
			return nil, fmt.Errorf("policy: load state: %w", err)
		}
		if ok {
			if err := stored.Validate(); err != nil {
				return nil, fmt.Errorf("policy: restored state invalid: %w", err)
			}
			if stored.Admin != admin {
				slog.Warn("policy: restored admin differs from configured admin",
					"restored", stored.Admin.Hex(), "configured", admin.Hex())
			}
			engine.state = stored.Clone()
		} else if err := engine.store.SavePolicyState(engine.state.Clone()); err != nil {
			return nil, fmt.Errorf("policy: persist initial state: %w", err)
		}
	}
	engine.metrics.SetInflationRate(engine.state.InflationRate)
	if supply, err := ledger.TotalSupply(); err != nil {
		slog.Warn("policy: read total supply for metrics", "error", err)
	} else {
		engine.metrics.RecordState(engine.state.Epoch, supply)
	}
	return engine, nil
}

func (e *Engine) nowSec() uint64 {
	now := e.nowFn().Unix()
	if now < 0 {
		return 0
	}
	return uint64(now)
}

func (e *Engine) persist(state *State) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SavePolicyState(state.Clone()); err != nil {
		return fmt.Errorf("policy: persist state: %w", err)
	}
	return nil
}

// Rebase runs one rebase cycle on behalf of caller, who must be the configured
// orchestrator.
func (e *Engine) Rebase(ctx context.Context, caller ethcommon.Address) (RebaseResult, error) {
	if e == nil {
		return RebaseResult{}, ErrNotInitialised
	}
	start := e.nowFn()
	_, span := e.tracer.Start(ctx, "policy.rebase",
		trace.WithAttributes(attribute.String("caller", caller.Hex())))
	defer span.End()

	result, err := e.rebase(caller)
	e.metrics.ObserveRebase(Outcome(err), e.nowFn().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RebaseResult{}, err
	}
	span.SetAttributes(
		attribute.Int64("epoch", int64(result.Epoch)),
		attribute.String("supply_delta", result.SupplyDelta.String()),
	)
	return result, nil
}

func (e *Engine) rebase(caller ethcommon.Address) (RebaseResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ledger == nil {
		return RebaseResult{}, ErrNotInitialised
	}
	if caller == (ethcommon.Address{}) || caller != e.state.Orchestrator {
		return RebaseResult{}, ErrUnauthorized
	}
	now := e.nowSec()
	window := e.state.Window()
	if !window.Contains(now) {
		return RebaseResult{}, ErrNotInWindow
	}
	if !intervalElapsed(e.state.LastRebaseTimestampSec, e.state.MinRebaseTimeIntervalSec, now) {
		return RebaseResult{}, ErrTooSoon
	}

	supply, err := e.ledger.TotalSupply()
	if err != nil {
		return RebaseResult{}, fmt.Errorf("policy: read total supply: %w", err)
	}
	delta, err := ComputeSupplyDelta(supply, e.state.InflationRate)
	if err != nil {
		return RebaseResult{}, err
	}
	delta, err = ClampSupplyDelta(supply, delta)
	if err != nil {
		return RebaseResult{}, err
	}

	// The timestamp and epoch advance before the ledger call so the interval
	// guard rejects any further rebase until this one has been rolled back.
	previous := e.state.Clone()
	next := e.state.Clone()
	next.LastRebaseTimestampSec = window.Start(now)
	next.Epoch++
	if err := e.persist(next); err != nil {
		return RebaseResult{}, err
	}
	e.state = next

	newSupply, err := e.ledger.Rebase(next.Epoch, new(big.Int).Set(delta))
	if err != nil {
		e.state = previous
		if perr := e.persist(previous); perr != nil {
			slog.Error("policy: restore state after ledger failure", "error", perr, "epoch", next.Epoch)
		}
		return RebaseResult{}, fmt.Errorf("policy: ledger rebase: %w", err)
	}
	if newSupply == nil || newSupply.Cmp(maxSupply) > 0 {
		slog.Error("policy: ledger supply above max supply", "epoch", next.Epoch, "supply", fmt.Sprint(newSupply))
		return RebaseResult{}, fmt.Errorf("%w: supply %v after epoch %d", ErrSupplyInvariant, newSupply, next.Epoch)
	}

	result := RebaseResult{
		Epoch:         next.Epoch,
		InflationRate: next.InflationRate,
		SupplyDelta:   delta,
		TimestampSec:  now,
	}
	e.emitter.Emit(events.PolicyRebase{
		Epoch:         result.Epoch,
		InflationRate: result.InflationRate,
		SupplyDelta:   new(big.Int).Set(delta),
		TimestampSec:  result.TimestampSec,
	})
	e.metrics.RecordRebase(result.Epoch, delta, newSupply)
	slog.Info("policy: rebase applied",
		"epoch", result.Epoch,
		"inflation_rate", result.InflationRate,
		"supply_delta", delta.String(),
		"total_supply", newSupply.String(),
		"timestamp", result.TimestampSec)
	return result, nil
}

// update applies mutate to a copy of the state after checking the admin, then
// persists and installs the copy.
func (e *Engine) update(caller ethcommon.Address, mutate func(*State) error) error {
	if e == nil {
		return ErrNotInitialised
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller == (ethcommon.Address{}) || caller != e.state.Admin {
		return ErrUnauthorized
	}
	next := e.state.Clone()
	if err := mutate(next); err != nil {
		return err
	}
	if err := e.persist(next); err != nil {
		return err
	}
	e.state = next
	return nil
}

// SetOrchestrator replaces the identity allowed to call Rebase.
func (e *Engine) SetOrchestrator(caller, orchestrator ethcommon.Address) error {
	return e.update(caller, func(s *State) error {
		s.Orchestrator = orchestrator
		return nil
	})
}

// SetInflationRate stores a new rate, effective from the next rebase.
func (e *Engine) SetInflationRate(caller ethcommon.Address, rate uint64) error {
	err := e.update(caller, func(s *State) error {
		if err := ValidateInflationRate(rate); err != nil {
			return err
		}
		s.InflationRate = rate
		return nil
	})
	if err != nil {
		return err
	}
	e.metrics.SetInflationRate(rate)
	return nil
}

// SetRebaseTimingParameters replaces the interval, offset and window length
// together.
func (e *Engine) SetRebaseTimingParameters(caller ethcommon.Address, intervalSec, offsetSec, lengthSec uint64) error {
	err := e.update(caller, func(s *State) error {
		if err := ValidateTimingParameters(intervalSec, offsetSec, lengthSec); err != nil {
			return err
		}
		s.MinRebaseTimeIntervalSec = intervalSec
		s.RebaseWindowOffsetSec = offsetSec
		s.RebaseWindowLengthSec = lengthSec
		return nil
	})
	if err == nil {
		e.InRebaseWindow()
	}
	return err
}

// ApplyParams applies a partial parameter update atomically.
func (e *Engine) ApplyParams(caller ethcommon.Address, params Params) error {
	var rate uint64
	err := e.update(caller, func(s *State) error {
		next, err := params.Resolve(s)
		if err != nil {
			return err
		}
		*s = *next
		rate = next.InflationRate
		return nil
	})
	if err != nil {
		return err
	}
	e.metrics.SetInflationRate(rate)
	if params.Timing() {
		// Refreshes the window gauge.
		e.InRebaseWindow()
	}
	return nil
}

// GlobalStateView returns the epoch and the ledger total supply observed
// together, never interleaved with a rebase.
func (e *Engine) GlobalStateView() (uint64, *big.Int, error) {
	if e == nil {
		return 0, nil, ErrNotInitialised
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return 0, nil, ErrNotInitialised
	}
	supply, err := e.ledger.TotalSupply()
	if err != nil {
		return 0, nil, fmt.Errorf("policy: read total supply: %w", err)
	}
	return e.state.Epoch, new(big.Int).Set(supply), nil
}

// InRebaseWindow reports whether a rebase is currently permitted by the
// timing gate.
func (e *Engine) InRebaseWindow() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	window := e.state.Window()
	e.mu.Unlock()
	open := window.Contains(e.nowSec())
	e.metrics.SetWindowOpen(open)
	return open
}

// State returns a snapshot of the policy state.
func (e *Engine) State() *State {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// InflationRate returns the rate in millionths applied per rebase.
func (e *Engine) InflationRate() uint64 { return e.State().InflationRate }

// MinRebaseTimeIntervalSec returns the minimum spacing between rebases.
func (e *Engine) MinRebaseTimeIntervalSec() uint64 { return e.State().MinRebaseTimeIntervalSec }

// LastRebaseTimestampSec returns the window start of the last rebase, or 0.
func (e *Engine) LastRebaseTimestampSec() uint64 { return e.State().LastRebaseTimestampSec }

// RebaseWindowOffsetSec returns the window start within each interval.
func (e *Engine) RebaseWindowOffsetSec() uint64 { return e.State().RebaseWindowOffsetSec }

// RebaseWindowLengthSec returns the window length.
func (e *Engine) RebaseWindowLengthSec() uint64 { return e.State().RebaseWindowLengthSec }

// Epoch returns the number of successful rebases.
func (e *Engine) Epoch() uint64 { return e.State().Epoch }

// Orchestrator returns the identity allowed to call Rebase.
func (e *Engine) Orchestrator() ethcommon.Address { return e.State().Orchestrator }

// Admin returns the identity allowed to change parameters.
func (e *Engine) Admin() ethcommon.Address { return e.State().Admin }

// Outcome maps a rebase error to a stable label for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotInWindow):
		return "not_in_window"
	case errors.Is(err, ErrTooSoon):
		return "too_soon"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrArithmeticOverflow):
		return "overflow"
	case errors.Is(err, ErrSupplyInvariant):
		return "supply_invariant"
	default:
		return "error"
	}
}
