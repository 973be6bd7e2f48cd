package wardkeep

import (
	"context"

	"github.com/wardkeep/wardkeep/internal/model"
)

// Engine is the decision surface a Guard consults. A sealed
// *boundary.Engine satisfies it.
type Engine interface {
	CheckOperation(source, target string, op model.Operation) bool
	Violations() []model.ViolationEvent
}

// Guard gates tool functions behind a live policy engine.
type Guard struct {
	engine Engine
}

// New creates a Guard around a policy engine. The engine should already
// be initialized and sealed; an unsealed engine allows everything.
func New(engine Engine) *Guard {
	return &Guard{engine: engine}
}

// ToolFunc is the function signature that Wrap guards. The Flow describes
// the data movement the call intends to perform.
type ToolFunc func(ctx context.Context, flow Flow) (any, error)

// Wrap returns a new ToolFunc that consults the boundary before calling fn.
// Wrap options fill Flow fields the call site leaves empty, so a tool with
// a fixed route can be wrapped once and invoked with a zero Flow.
//
// If the boundary blocks the flow, the wrapped function is not called and
// the returned error is a *BlockedError carrying the recorded violation.
func (g *Guard) Wrap(fn ToolFunc, opts ...WrapOption) ToolFunc {
	wcfg := wrapConfig{}
	for _, o := range opts {
		o(&wcfg)
	}

	return func(ctx context.Context, flow Flow) (any, error) {
		merged := wcfg.apply(flow)

		op := model.OpRead
		if merged.Operation != "" {
			var err error
			op, err = model.ParseOperation(merged.Operation)
			if err != nil {
				return nil, err
			}
		}

		if !g.engine.CheckOperation(merged.Source, merged.Destination, op) {
			blocked := &BlockedError{Flow: merged}
			if vs := g.engine.Violations(); len(vs) > 0 {
				blocked.Violation = toViolation(vs[len(vs)-1])
			}
			return nil, blocked
		}

		return fn(ctx, merged)
	}
}
