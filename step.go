// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import (
	"context"
	"fmt"

	"code.hybscloud.com/kont"
)

// run evaluates the update chain one Update effect at a time.
//
// Each suspension is dispatched by applying its updater. A plain result
// resumes the chain with the new state. A pause discards the suspension,
// so no later updater runs, and the chain completes with the
// continuation's result instead. Errors discard the suspension.
func (s *Store) run(ctx context.Context, action Action, at StartingPoint, settings *dispatchSettings) (State, error) {
	result, susp := kont.StepExpr(kont.Reify(updateChain(at.Index, len(s.updaters), at.State)))
	for susp != nil {
		op, ok := susp.Op().(Update)
		if !ok {
			panic("isodispatch: unhandled effect in update chain")
		}
		if err := ctx.Err(); err != nil {
			susp.Discard()
			return nil, err
		}
		next, pending, err := s.apply(ctx, op, action, settings)
		if err != nil {
			susp.Discard()
			return nil, err
		}
		if pending != nil {
			susp.Discard()
			return awaitServer(ctx, pending)
		}
		result, susp = susp.Resume(next)
	}
	if settings.finished != nil {
		settings.finished()
	}
	return result, nil
}

// apply runs the updater named by op. It returns either the next state or,
// when the updater paused, the continuation's pending result.
func (s *Store) apply(ctx context.Context, op Update, action Action, settings *dispatchSettings) (next State, pending Future[State], err error) {
	call := &onServerCall{
		action:   action,
		at:       StartingPoint{State: op.State, Index: op.Index},
		settings: settings,
	}
	defer func() {
		if r := recover(); r != nil {
			next, pending = nil, nil
			err = &UpdaterError{Index: op.Index, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	next, err = s.updaters[op.Index](ctx, op.State, action, call.onServer)
	if call.paused {
		return nil, call.future(), nil
	}
	if err != nil {
		return nil, nil, &UpdaterError{Index: op.Index, Err: err}
	}
	if next == nil {
		return nil, nil, &UpdaterError{Index: op.Index, Err: ErrNoState}
	}
	return next, nil, nil
}

// awaitServer waits for a paused chain's final state.
func awaitServer(ctx context.Context, pending Future[State]) (State, error) {
	state, err := pending.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrNoState
	}
	return state, nil
}
