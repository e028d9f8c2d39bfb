// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import (
	"context"

	"code.hybscloud.com/atomix"
)

// Future is the consumer side of a deferred result.
type Future[T any] interface {
	// Wait blocks until the result is settled or ctx is done.
	Wait(ctx context.Context) (T, error)
}

// Placeholder is a deferred result created before its producer is known.
// The first Resolve or Reject settles it; later calls are no-ops.
type Placeholder[T any] struct {
	settled atomix.Uint32
	done    chan struct{}
	value   T
	err     error
}

// NewPlaceholder returns an unsettled placeholder.
func NewPlaceholder[T any]() *Placeholder[T] {
	return &Placeholder[T]{done: make(chan struct{})}
}

// Resolve settles p with v. Reports whether this call settled it.
func (p *Placeholder[T]) Resolve(v T) bool {
	if p.settled.Add(1) != 1 {
		return false
	}
	p.value = v
	close(p.done)
	return true
}

// Reject settles p with err. Reports whether this call settled it.
func (p *Placeholder[T]) Reject(err error) bool {
	if p.settled.Add(1) != 1 {
		return false
	}
	p.err = err
	close(p.done)
	return true
}

// Done is closed once p is settled.
func (p *Placeholder[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until p is settled or ctx is done.
func (p *Placeholder[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Future returns the read side of p.
func (p *Placeholder[T]) Future() Future[T] {
	return p
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) Future[T] {
	p := NewPlaceholder[T]()
	p.Resolve(v)
	return p
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) Future[T] {
	p := NewPlaceholder[T]()
	p.Reject(err)
	return p
}
