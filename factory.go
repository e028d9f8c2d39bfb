// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import (
	"context"
)

// Factory creates server dispatchers over a fixed set of initial stores,
// either at their initial states or after a dispatch paused on a client.
type Factory struct {
	stores StoresMap
	opts   []Option
}

// NewFactory returns a factory over stores.
func NewFactory(stores map[string]Storer, opts ...Option) (*Factory, error) {
	m, err := NewStoresMap(stores)
	if err != nil {
		return nil, err
	}
	return &Factory{stores: m, opts: opts}, nil
}

// Stores returns the factory's initial stores.
func (f *Factory) Stores() StoresMap {
	return f.stores
}

// Initial returns a server dispatcher at the initial states.
func (f *Factory) Initial(arg any) *ServerDispatcher {
	return newServerDispatcher(f.stores, arg, NewRegistry[map[string]State](), f.opts)
}

// After returns a server dispatcher that has resumed actions[0] from points
// and then applied the remaining actions in order.
func (f *Factory) After(ctx context.Context, arg any, points map[string]StartingPoint, actions []Action) (*ServerDispatcher, error) {
	if len(actions) == 0 {
		return nil, ErrInvalidAction
	}
	d := f.Initial(arg)
	if _, err := d.StartDispatchAt(ctx, actions[0], points); err != nil {
		return nil, err
	}
	if _, err := d.DispatchActions(ctx, actions[1:]); err != nil {
		return nil, err
	}
	return d, nil
}
