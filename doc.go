// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package isodispatch provides Flux-style immutable stores with isomorphic
// dispatch: an update chain started on a client may be suspended mid-way and
// finished on a server, transparently to callers.
//
// # Architecture
//
//   - Store: immutable state plus an ordered chain of [UpdateFunc]. The chain is a
//     sequence of [Update] effects on [code.hybscloud.com/kont], stepped one effect at
//     a time. An updater calling [OnServer] in pause mode discards the rest of the
//     chain and completes it with an external [Future].
//   - Handler: serializes actions over a [StoresMap]. One dispatch is in flight at a
//     time; later actions wait in a bounded queue on [code.hybscloud.com/lfq] and run
//     in order. A full queue holds the pusher back with [code.hybscloud.com/iox.Backoff].
//   - Dispatcher: the public handle. Dispatches through a Handler, exposes the last
//     settled states, and publishes them to a persistent [Registry].
//
// # Variants
//
//   - [NewDispatcher], [NewHandler]: chains complete with each store's own config.
//   - [NewServerDispatcher], [NewServerHandler]: every OnServer call receives a fixed
//     argument; [ServerDispatcher.StartDispatchAt] resumes chains from starting points.
//   - [NewClientDispatcher], [NewClientHandler]: OnServer pauses the chain; every pause
//     of one action, plus the actions queued behind it, is finished by a single
//     [FinishOnServerBatchFunc] call.
//   - [Factory]: builds server dispatchers at the initial states or after a paused
//     client dispatch.
//
// # Failure
//
// A failed action leaves every store as it was. The caller gets the error and
// [Handler.OnError] listeners are notified. Nothing is retried.
//
// # Example
//
//	counter := isodispatch.NewStore(0).Register(
//		func(ctx context.Context, s isodispatch.State, a isodispatch.Action, _ isodispatch.OnServer) (isodispatch.State, error) {
//			return s.(int) + 1, nil
//		})
//	d, _ := isodispatch.NewDispatcher(map[string]isodispatch.Storer{"counter": counter})
//	states, _ := d.Dispatch(ctx, map[string]any{"type": "INCREMENT"})
//	// states["counter"] == 1
package isodispatch
