// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import (
	"code.hybscloud.com/kont"
)

// Update is the effect operation for running one updater of a chain.
// Perform(Update{Index: i, State: s}) applies the updater at i to s and
// resumes with the state it returned.
type Update struct {
	kont.Phantom[State]
	Index int
	State State
}

// updateChain builds the chain of Update effects from index to count-1,
// threading each resumed state into the next effect.
func updateChain(index, count int, state State) kont.Eff[State] {
	if index >= count {
		return kont.Pure(state)
	}
	return kont.Bind(kont.Perform(Update{Index: index, State: state}), func(next State) kont.Eff[State] {
		return updateChain(index+1, count, next)
	})
}

// OnServerFunc computes a state from the server-side argument.
type OnServerFunc func(arg any) (State, error)

// OnServer is the capability handed to each updater.
//
// In server-argument mode it calls fn with the configured argument and
// returns its result. In pause mode fn is ignored: the store's
// finish-on-server continuation is invoked with the updater's starting
// point and OnServer returns ErrFinishingOnServer. The chain then stops
// at this updater and completes with the continuation's result.
//
// OnServer must be called before the updater returns.
type OnServer func(fn OnServerFunc) (State, error)

// FinishOnServerFunc hands a paused chain to another execution context.
// at is the state fed into the pausing updater and that updater's index.
type FinishOnServerFunc func(action Action, at StartingPoint) Future[State]

// onServerCall is the OnServer capability for a single updater call.
type onServerCall struct {
	action   Action
	at       StartingPoint
	settings *dispatchSettings
	paused   bool
	pending  Future[State]
}

func (c *onServerCall) onServer(fn OnServerFunc) (State, error) {
	if c.settings.finish != nil {
		if !c.paused {
			c.paused = true
			c.pending = c.settings.finish(c.action, c.at)
		}
		return nil, ErrFinishingOnServer
	}
	if fn == nil {
		return nil, ErrNoState
	}
	return fn(c.settings.arg)
}

// future returns the continuation's result, or a rejected future when the
// continuation produced none.
func (c *onServerCall) future() Future[State] {
	if c.pending == nil {
		return Rejected[State](ErrNoState)
	}
	return c.pending
}
