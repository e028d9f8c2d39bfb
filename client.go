// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FinishOnServerBatchFunc completes paused chains on a server.
// pausePoints holds where each paused store stopped; actions[0] is the
// action that paused them, followed by the actions queued behind it.
// It returns the final state of every paused store, keyed by store name.
type FinishOnServerBatchFunc func(ctx context.Context, pausePoints map[string]StartingPoint, actions []Action) (map[string]State, error)

// clientPerformer dispatches in pause mode and finishes paused stores
// with one external call per action. When every store pauses, the actions
// queued behind it join the same call.
type clientPerformer struct {
	finish FinishOnServerBatchFunc
}

type storeEventKind uint8

const (
	storePaused storeEventKind = iota
	storeFinished
	storeReturned
)

// storeEvent reports one store's progress during a client dispatch.
type storeEvent struct {
	index  int
	kind   storeEventKind
	at     StartingPoint
	result *Placeholder[State]
}

func (p clientPerformer) perform(ctx context.Context, h *Handler, stores StoresMap, j job) (StoresMap, []job, error) {
	names := stores.names
	n := len(names)

	// Each store sends at most two events: pause or finish, then return.
	events := make(chan storeEvent, 2*n)
	results := make([]storeResult, n)
	var wg sync.WaitGroup
	for i, name := range names {
		st := stores.stores[name]
		result := NewPlaceholder[State]()
		wg.Add(1)
		go func() {
			defer wg.Done()
			next, err := st.Dispatch(ctx, j.action,
				WithFinishOnServer(func(_ Action, at StartingPoint) Future[State] {
					events <- storeEvent{index: i, kind: storePaused, at: at, result: result}
					return result
				}),
				WithFinishedUpdaters(func() {
					events <- storeEvent{index: i, kind: storeFinished}
				}),
			)
			results[i] = storeResult{store: next, err: err}
			events <- storeEvent{index: i, kind: storeReturned}
		}()
	}

	// Wait until every store has paused, finished, or returned.
	settled := make([]bool, n)
	pauses := make(map[string]StartingPoint)
	pending := make(map[string]*Placeholder[State])
	failed := false
	for remaining := n; remaining > 0; {
		ev := <-events
		if settled[ev.index] {
			continue
		}
		settled[ev.index] = true
		remaining--
		switch ev.kind {
		case storePaused:
			pauses[names[ev.index]] = ev.at
			pending[names[ev.index]] = ev.result
		case storeReturned:
			failed = failed || results[ev.index].err != nil
		}
	}

	var absorbed []job
	switch {
	case failed:
		for _, result := range pending {
			result.Reject(errBatchAborted)
		}
	case len(pauses) > 0:
		// Queued actions ride along only when the server resumes every
		// store; a store that finished here would never see them.
		actions := []Action{j.action}
		if len(pauses) == n {
			absorbed = h.drain()
			for _, a := range absorbed {
				actions = append(actions, a.action)
			}
		}

		states, err := p.finishOnServer(ctx, h, j.serial, pauses, actions)
		for name, result := range pending {
			if err != nil {
				result.Reject(err)
				continue
			}
			result.Resolve(states[name])
		}
	}

	wg.Wait()
	if failed {
		return StoresMap{}, nil, firstLocalError(names, results)
	}
	updated, err := collect(names, results)
	return updated, absorbed, err
}

// errBatchAborted rejects paused stores when another store of the same
// dispatch has already failed.
var errBatchAborted = errors.New("isodispatch: dispatch aborted")

// firstLocalError reports, in name order, the first store that failed on
// its own rather than being aborted.
func firstLocalError(names []string, results []storeResult) error {
	for i, r := range results {
		if r.err != nil && !errors.Is(r.err, errBatchAborted) {
			return &StoreError{Store: names[i], Err: r.err}
		}
	}
	_, err := collect(names, results)
	return err
}

// finishOnServer makes the external call and checks the response names
// exactly the paused stores.
func (p clientPerformer) finishOnServer(ctx context.Context, h *Handler, serial Serial, pauses map[string]StartingPoint, actions []Action) (map[string]State, error) {
	ctx, span := h.tracer.Start(ctx, "isodispatch.finishOnServer", trace.WithAttributes(
		attribute.Int64("isodispatch.serial", int64(serial)),
		attribute.Int("isodispatch.paused", len(pauses)),
		attribute.Int("isodispatch.actions", len(actions)),
	))
	defer span.End()
	h.log.Debug("finishing on server", "serial", serial, "paused", len(pauses), "actions", len(actions))

	states, err := p.finish(ctx, pauses, actions)
	if err == nil {
		err = checkResponse(pauses, states)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return states, nil
}

// checkResponse reports the first store, in name order, that the server
// returned without being asked, or that it failed to return.
func checkResponse(pauses map[string]StartingPoint, states map[string]State) error {
	returned := make([]string, 0, len(states))
	for name := range states {
		returned = append(returned, name)
	}
	sort.Strings(returned)
	for _, name := range returned {
		if _, ok := pauses[name]; !ok {
			return &ProtocolError{Store: name, Reason: "invalid"}
		}
	}

	paused := make([]string, 0, len(pauses))
	for name := range pauses {
		paused = append(paused, name)
	}
	sort.Strings(paused)
	for _, name := range paused {
		if states[name] == nil {
			return &ProtocolError{Store: name, Reason: "missing"}
		}
	}
	return nil
}
