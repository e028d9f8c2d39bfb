// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// performer is the dispatch strategy of a Handler, fixed at construction.
//
// perform applies j to stores and returns the stores it updated. Jobs it
// took from the handler's queue and completed as part of j are returned as
// absorbed; their callers settle with j's outcome.
type performer interface {
	perform(ctx context.Context, h *Handler, stores StoresMap, j job) (updated StoresMap, absorbed []job, err error)
}

// localPerformer completes every chain in-process. With a server argument
// in opts it is the server-side strategy.
type localPerformer struct {
	opts []DispatchOption
}

func (p localPerformer) perform(ctx context.Context, _ *Handler, stores StoresMap, j job) (StoresMap, []job, error) {
	if j.points != nil {
		updated, err := startAll(ctx, stores, j.action, j.points, p.opts)
		return updated, nil, err
	}
	updated, err := dispatchAll(ctx, stores, j.action, func(int, string) []DispatchOption { return p.opts })
	return updated, nil, err
}

type storeResult struct {
	store Storer
	err   error
}

// dispatchAll dispatches action to every store concurrently and waits for
// all of them. Any failure fails the whole action.
func dispatchAll(ctx context.Context, stores StoresMap, action Action, optsFor func(i int, name string) []DispatchOption) (StoresMap, error) {
	names := stores.names
	results := make([]storeResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		st := stores.stores[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			next, err := st.Dispatch(ctx, action, optsFor(i, name)...)
			results[i] = storeResult{store: next, err: err}
		}()
	}
	wg.Wait()
	return collect(names, results)
}

// startAll resumes action on the stores named in points, concurrently.
func startAll(ctx context.Context, stores StoresMap, action Action, points map[string]StartingPoint, opts []DispatchOption) (StoresMap, error) {
	names := make([]string, 0, len(points))
	for name, at := range points {
		if !stores.Has(name) {
			return StoresMap{}, &StoreError{Store: name, Err: ErrUnknownStore}
		}
		if at.State == nil {
			return StoresMap{}, &StoreError{Store: name, Err: ErrInvalidStartingPoint}
		}
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]storeResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		st := stores.stores[name]
		at := points[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			next, err := st.StartDispatchAt(ctx, action, at, opts...)
			results[i] = storeResult{store: next, err: err}
		}()
	}
	wg.Wait()
	return collect(names, results)
}

// collect builds the updated map, or returns the first failure in name order.
func collect(names []string, results []storeResult) (StoresMap, error) {
	updated := StoresMap{
		names:  make([]string, 0, len(names)),
		stores: make(map[string]Storer, len(names)),
	}
	for i, r := range results {
		if r.err != nil {
			return StoresMap{}, &StoreError{Store: names[i], Err: r.err}
		}
		if r.store == nil {
			return StoresMap{}, &StoreError{Store: names[i], Err: fmt.Errorf("%w: dispatch returned no store", ErrInvalidStore)}
		}
		updated.names = append(updated.names, names[i])
		updated.stores[names[i]] = r.store
	}
	return updated, nil
}
