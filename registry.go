// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

// SubscriberID identifies one subscription in a Registry.
type SubscriberID uint32

type subscriber[V any] struct {
	id SubscriberID
	fn func(V)
}

// Registry is a persistent list of subscribers.
// Subscribe and Unsubscribe return a new Registry; the receiver is unchanged,
// so a Registry value can be published from while another goroutine derives
// a new one.
type Registry[V any] struct {
	subs []subscriber[V]
}

// NewRegistry returns an empty registry.
func NewRegistry[V any]() *Registry[V] {
	return &Registry[V]{}
}

// Subscribe returns a registry with fn appended, and fn's identity.
// Panics if fn is nil.
func (r *Registry[V]) Subscribe(fn func(V)) (*Registry[V], SubscriberID) {
	if fn == nil {
		panic("isodispatch: subscriber must be a function")
	}
	id := nextSubscriberID()
	subs := make([]subscriber[V], len(r.subs), len(r.subs)+1)
	copy(subs, r.subs)
	subs = append(subs, subscriber[V]{id: id, fn: fn})
	return &Registry[V]{subs: subs}, id
}

// Unsubscribe returns a registry without the subscriber id.
// Returns ErrNotSubscribed if id is not in r.
func (r *Registry[V]) Unsubscribe(id SubscriberID) (*Registry[V], error) {
	for i, s := range r.subs {
		if s.id != id {
			continue
		}
		subs := make([]subscriber[V], 0, len(r.subs)-1)
		subs = append(subs, r.subs[:i]...)
		subs = append(subs, r.subs[i+1:]...)
		return &Registry[V]{subs: subs}, nil
	}
	return r, ErrNotSubscribed
}

// Publish calls every subscriber with v, synchronously, in subscribe order.
func (r *Registry[V]) Publish(v V) {
	for _, s := range r.subs {
		s.fn(v)
	}
}

// Len returns the number of subscribers.
func (r *Registry[V]) Len() int {
	return len(r.subs)
}
