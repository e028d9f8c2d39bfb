// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import (
	"context"
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
)

// Dispatcher is the public handle on a group of stores: it dispatches
// actions through a Handler, exposes the last settled states, and
// publishes them to subscribers after every successful action.
type Dispatcher struct {
	h *Handler

	mu   sync.Mutex
	subs *Registry[map[string]State]
}

// NewDispatcher returns a dispatcher over stores that completes every
// chain locally.
func NewDispatcher(stores map[string]Storer, opts ...Option) (*Dispatcher, error) {
	m, err := NewStoresMap(stores)
	if err != nil {
		return nil, err
	}
	return newDispatcher(NewHandler(m, opts...), NewRegistry[map[string]State]()), nil
}

func newDispatcher(h *Handler, subs *Registry[map[string]State]) *Dispatcher {
	d := &Dispatcher{h: h, subs: subs}
	h.OnUpdate(d.publish)
	return d
}

func (d *Dispatcher) publish(stores StoresMap) {
	d.mu.Lock()
	subs := d.subs
	d.mu.Unlock()
	if subs.Len() == 0 {
		return
	}
	subs.Publish(stores.States())
}

// Handler returns the dispatcher's handler.
func (d *Dispatcher) Handler() *Handler {
	return d.h
}

// Dispatch applies action to every store and returns the resulting states.
// Actions dispatched concurrently are applied one at a time, in order.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action) (map[string]State, error) {
	stores, err := d.h.PushAction(ctx, action)
	if err != nil {
		return nil, err
	}
	return stores.States(), nil
}

// DispatchActions applies actions in order and returns the states after
// the last one.
func (d *Dispatcher) DispatchActions(ctx context.Context, actions []Action) (map[string]State, error) {
	stores, err := d.h.PushActions(ctx, actions)
	if err != nil {
		return nil, err
	}
	return stores.States(), nil
}

// StateForAll returns the last settled state of every store.
func (d *Dispatcher) StateForAll() map[string]State {
	return d.h.Stores().States()
}

// StateFor returns the last settled state of the named store.
func (d *Dispatcher) StateFor(name string) (State, error) {
	st, ok := d.h.Stores().Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: store name(%s)", ErrUnknownStore, name)
	}
	return st.State(), nil
}

// WaitIdle blocks until no dispatch is in flight or ctx is done.
func (d *Dispatcher) WaitIdle(ctx context.Context) error {
	return d.h.WaitIdle(ctx)
}

// SubscribeToAll registers fn to receive every store's state after each
// successful dispatch. The returned func unsubscribes fn; calling it again
// returns ErrAlreadyUnsubscribed.
func (d *Dispatcher) SubscribeToAll(fn func(map[string]State)) func() error {
	d.mu.Lock()
	var id SubscriberID
	d.subs, id = d.subs.Subscribe(fn)
	d.mu.Unlock()

	var calls atomix.Uint32
	return func() error {
		if calls.Add(1) != 1 {
			return ErrAlreadyUnsubscribed
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		subs, err := d.subs.Unsubscribe(id)
		if err != nil {
			return err
		}
		d.subs = subs
		return nil
	}
}

// SubscribeTo registers fn to receive the named store's state after each
// successful dispatch. Returns ErrUnknownStore for an unknown name.
func (d *Dispatcher) SubscribeTo(name string, fn func(State)) (func() error, error) {
	if !d.h.Stores().Has(name) {
		return nil, fmt.Errorf("%w: store(%s)", ErrUnknownStore, name)
	}
	if fn == nil {
		panic("isodispatch: subscriber must be a function")
	}
	return d.SubscribeToAll(func(states map[string]State) {
		fn(states[name])
	}), nil
}

// ClientDispatcher is a Dispatcher whose stores pause on OnServer calls
// and finish their chains through an external call.
type ClientDispatcher struct {
	*Dispatcher
}

// NewClientDispatcher returns a client dispatcher finishing paused chains
// through finish.
func NewClientDispatcher(stores map[string]Storer, finish FinishOnServerBatchFunc, opts ...Option) (*ClientDispatcher, error) {
	if finish == nil {
		return nil, fmt.Errorf("%w: client dispatcher requires a finish on server function", ErrInvalidStore)
	}
	m, err := NewStoresMap(stores)
	if err != nil {
		return nil, err
	}
	h := NewClientHandler(m, finish, opts...)
	return &ClientDispatcher{Dispatcher: newDispatcher(h, NewRegistry[map[string]State]())}, nil
}

// ServerDispatcher is a Dispatcher whose updaters' OnServer calls receive
// a fixed argument, and which can resume chains paused on a client.
type ServerDispatcher struct {
	*Dispatcher
	arg  any
	opts []Option
}

// NewServerDispatcher returns a server dispatcher passing arg to OnServer.
func NewServerDispatcher(stores map[string]Storer, arg any, opts ...Option) (*ServerDispatcher, error) {
	m, err := NewStoresMap(stores)
	if err != nil {
		return nil, err
	}
	return newServerDispatcher(m, arg, NewRegistry[map[string]State](), opts), nil
}

func newServerDispatcher(m StoresMap, arg any, subs *Registry[map[string]State], opts []Option) *ServerDispatcher {
	h := NewServerHandler(m, arg, opts...)
	return &ServerDispatcher{Dispatcher: newDispatcher(h, subs), arg: arg, opts: opts}
}

// CloneWithOnServerArg returns a server dispatcher with the same stores and
// subscribers as d, passing arg to OnServer instead.
func (d *ServerDispatcher) CloneWithOnServerArg(arg any) *ServerDispatcher {
	d.mu.Lock()
	subs := d.subs
	d.mu.Unlock()
	return newServerDispatcher(d.h.Stores(), arg, subs, d.opts)
}

// StartDispatchAt resumes action on the stores named in points, each from
// its starting point, and returns the states of those stores only.
func (d *ServerDispatcher) StartDispatchAt(ctx context.Context, action Action, points map[string]StartingPoint) (map[string]State, error) {
	if !validAction(action) {
		return nil, ErrInvalidAction
	}
	if points == nil {
		return nil, fmt.Errorf("%w: starting point must be an object of starting points", ErrInvalidStartingPoint)
	}
	stores := d.h.Stores()
	for name, at := range points {
		if !stores.Has(name) {
			return nil, fmt.Errorf("%w: store(%s)", ErrUnknownStore, name)
		}
		if at.State == nil {
			return nil, fmt.Errorf("%w: store(%s)", ErrInvalidStartingPoint, name)
		}
	}

	updated, err := d.h.StartDispatchAt(ctx, action, points)
	if err != nil {
		return nil, err
	}
	states := make(map[string]State, len(points))
	for name := range points {
		st, _ := updated.Get(name)
		states[name] = st.State()
	}
	return states, nil
}
