// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import (
	"context"
)

// UpdateFunc transforms a state in response to an action.
// It must return a non-nil state or an error.
type UpdateFunc func(ctx context.Context, state State, action Action, onServer OnServer) (State, error)

// Storer is the capability surface a store exposes to dispatchers.
type Storer interface {
	// Register returns a store with fn appended to its updaters.
	Register(fn UpdateFunc) Storer
	// Dispatch runs every updater against action, starting from the
	// store's state, and returns the updated store.
	Dispatch(ctx context.Context, action Action, opts ...DispatchOption) (Storer, error)
	// StartDispatchAt runs the updaters from at.Index on, starting
	// from at.State.
	StartDispatchAt(ctx context.Context, action Action, at StartingPoint, opts ...DispatchOption) (Storer, error)
	// State returns the store's current state.
	State() State
	// FinishOnServerUsing returns a store that pauses on OnServer calls.
	FinishOnServerUsing(fn FinishOnServerFunc) (Storer, error)
	// SetOnServerArg returns a store whose OnServer calls receive arg.
	SetOnServerArg(arg any) (Storer, error)
}

var _ Storer = (*Store)(nil)

// Store holds one domain's state and its ordered updaters.
// A Store is immutable: every method returns a new Store and leaves the
// receiver untouched.
type Store struct {
	state    State
	updaters []UpdateFunc
	finish   FinishOnServerFunc
	arg      any
	hasArg   bool
}

// NewStore creates a store with initial state and no updaters.
// Panics if initial is nil.
func NewStore(initial State) *Store {
	if initial == nil {
		panic("isodispatch: store must have an initial state")
	}
	return &Store{state: initial}
}

// with returns a copy of s holding state.
func (s *Store) with(state State) *Store {
	return &Store{
		state:    state,
		updaters: s.updaters,
		finish:   s.finish,
		arg:      s.arg,
		hasArg:   s.hasArg,
	}
}

// Register returns a store with fn appended to its updaters.
// Panics if fn is nil.
func (s *Store) Register(fn UpdateFunc) Storer {
	if fn == nil {
		panic("isodispatch: updaters must be functions")
	}
	updaters := make([]UpdateFunc, len(s.updaters)+1)
	copy(updaters, s.updaters)
	updaters[len(s.updaters)] = fn

	next := s.with(s.state)
	next.updaters = updaters
	return next
}

// FinishOnServerUsing returns a store in pause mode: an updater calling
// OnServer suspends the chain and fn supplies the final state.
// Any server argument is cleared.
func (s *Store) FinishOnServerUsing(fn FinishOnServerFunc) (Storer, error) {
	if fn == nil {
		return nil, ErrInvalidStore
	}
	next := s.with(s.state)
	next.finish = fn
	next.arg, next.hasArg = nil, false
	return next, nil
}

// SetOnServerArg returns a store in server-argument mode: functions given
// to OnServer are called with arg. Any finish-on-server function is cleared.
func (s *Store) SetOnServerArg(arg any) (Storer, error) {
	next := s.with(s.state)
	next.finish = nil
	next.arg, next.hasArg = arg, true
	return next, nil
}

// State returns the store's state.
func (s *Store) State() State {
	return s.state
}

// Len returns the number of registered updaters.
func (s *Store) Len() int {
	return len(s.updaters)
}

// Dispatch runs all updaters in registration order against action.
func (s *Store) Dispatch(ctx context.Context, action Action, opts ...DispatchOption) (Storer, error) {
	return s.StartDispatchAt(ctx, action, StartingPoint{State: s.state, Index: 0}, opts...)
}

// StartDispatchAt runs the updaters at.Index through the last, feeding
// at.State into the first of them. The returned store shares s's updaters
// and server-mode configuration. On error s is unaffected.
//
// Validation failures are returned before any updater runs. With no
// updaters registered the result is a copy of s.
func (s *Store) StartDispatchAt(ctx context.Context, action Action, at StartingPoint, opts ...DispatchOption) (Storer, error) {
	if !validAction(action) {
		return nil, ErrInvalidAction
	}
	settings, err := s.settingsFor(opts)
	if err != nil {
		return nil, err
	}
	if len(s.updaters) == 0 {
		if settings.finished != nil {
			settings.finished()
		}
		return s.with(s.state), nil
	}
	if err := at.validate(len(s.updaters)); err != nil {
		return nil, err
	}

	state, err := s.run(ctx, action, at, settings)
	if err != nil {
		return nil, err
	}
	return s.with(state), nil
}
