// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import (
	"fmt"
	"sort"
)

// StoresMap is a persistent, insertion-ordered map from store name to store.
// Set and Merge return a new map; the receiver is never modified.
// The zero value is an empty map.
type StoresMap struct {
	names  []string
	stores map[string]Storer
}

// NewStoresMap builds a StoresMap from stores, ordered by name.
// Returns ErrInvalidStore for an empty name or a nil store.
func NewStoresMap(stores map[string]Storer) (StoresMap, error) {
	names := make([]string, 0, len(stores))
	for name, st := range stores {
		if name == "" {
			return StoresMap{}, fmt.Errorf("%w: store name must be a non-empty string", ErrInvalidStore)
		}
		if st == nil {
			return StoresMap{}, fmt.Errorf("%w: store(%s) is nil", ErrInvalidStore, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	m := StoresMap{names: names, stores: make(map[string]Storer, len(stores))}
	for name, st := range stores {
		m.stores[name] = st
	}
	return m, nil
}

// Len returns the number of stores.
func (m StoresMap) Len() int {
	return len(m.names)
}

// Names returns the store names in order.
func (m StoresMap) Names() []string {
	return append([]string(nil), m.names...)
}

// Get returns the store named name.
func (m StoresMap) Get(name string) (Storer, bool) {
	st, ok := m.stores[name]
	return st, ok
}

// Has reports whether name is in m.
func (m StoresMap) Has(name string) bool {
	_, ok := m.stores[name]
	return ok
}

// Set returns a map with name bound to st. New names are appended.
func (m StoresMap) Set(name string, st Storer) StoresMap {
	next := StoresMap{
		names:  m.names,
		stores: make(map[string]Storer, len(m.stores)+1),
	}
	for k, v := range m.stores {
		next.stores[k] = v
	}
	if _, ok := m.stores[name]; !ok {
		next.names = make([]string, len(m.names), len(m.names)+1)
		copy(next.names, m.names)
		next.names = append(next.names, name)
	}
	next.stores[name] = st
	return next
}

// Merge returns m with every entry of other set over it.
func (m StoresMap) Merge(other StoresMap) StoresMap {
	if other.Len() == 0 {
		return m
	}
	next := StoresMap{
		names:  append([]string(nil), m.names...),
		stores: make(map[string]Storer, len(m.stores)+len(other.stores)),
	}
	for k, v := range m.stores {
		next.stores[k] = v
	}
	for _, name := range other.names {
		if _, ok := next.stores[name]; !ok {
			next.names = append(next.names, name)
		}
		next.stores[name] = other.stores[name]
	}
	return next
}

// Range calls fn for each store in order until fn returns false.
func (m StoresMap) Range(fn func(name string, st Storer) bool) {
	for _, name := range m.names {
		if !fn(name, m.stores[name]) {
			return
		}
	}
}

// States projects m to a plain name-to-state mapping.
func (m StoresMap) States() map[string]State {
	states := make(map[string]State, len(m.names))
	for _, name := range m.names {
		states[name] = m.stores[name].State()
	}
	return states
}
