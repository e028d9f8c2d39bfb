// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import (
	"context"
	"log/slog"
	"sync"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// job is one queued unit of work: an action for every store, or, when
// points is non-nil, an action resumed from starting points on a subset.
type job struct {
	ctx    context.Context
	serial Serial
	action Action
	points map[string]StartingPoint
	result *Placeholder[StoresMap]
}

// Handler serializes dispatches against a group of stores.
//
// Exactly one dispatch is in flight at a time. Actions pushed while busy
// wait in a bounded queue and run in submission order, each against the
// map left by the previous one. A failed action leaves the map as it was.
type Handler struct {
	perf   performer
	log    *slog.Logger
	tracer trace.Tracer

	mu      sync.Mutex
	stores  StoresMap
	busy    bool
	queue   lfq.SPSC[job]
	queued  int
	updates *Registry[StoresMap]
	errs    *Registry[error]
}

// NewHandler returns a handler that dispatches with each store's own
// server-mode configuration.
func NewHandler(stores StoresMap, opts ...Option) *Handler {
	return newHandler(stores, localPerformer{}, opts)
}

// NewServerHandler returns a handler that passes arg to every OnServer call.
func NewServerHandler(stores StoresMap, arg any, opts ...Option) *Handler {
	return newHandler(stores, localPerformer{opts: []DispatchOption{WithOnServerArg(arg)}}, opts)
}

// NewClientHandler returns a handler whose stores pause on OnServer calls
// and finish through finish, batching every pause of one action together
// with the actions queued behind it.
func NewClientHandler(stores StoresMap, finish FinishOnServerBatchFunc, opts ...Option) *Handler {
	if finish == nil {
		panic("isodispatch: finishOnServer must be a function")
	}
	return newHandler(stores, clientPerformer{finish: finish}, opts)
}

func newHandler(stores StoresMap, perf performer, opts []Option) *Handler {
	o := buildOptions(opts)
	h := &Handler{
		perf:    perf,
		log:     o.logger,
		tracer:  o.tracer.Tracer(tracerName),
		stores:  stores,
		updates: NewRegistry[StoresMap](),
		errs:    NewRegistry[error](),
	}
	h.queue.Init(o.queueCapacity)
	return h
}

// Stores returns the latest settled map.
func (h *Handler) Stores() StoresMap {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stores
}

// Busy reports whether a dispatch is in flight.
func (h *Handler) Busy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.busy
}

// OnUpdate registers fn to receive the map after each successful action.
// fn runs on the dispatch goroutine and must not wait for a push to settle.
// The returned func removes fn.
func (h *Handler) OnUpdate(fn func(StoresMap)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	var id SubscriberID
	h.updates, id = h.updates.Subscribe(fn)
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.updates, _ = h.updates.Unsubscribe(id)
	}
}

// OnError registers fn to receive the error of each failed action.
// The returned func removes fn.
func (h *Handler) OnError(fn func(error)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	var id SubscriberID
	h.errs, id = h.errs.Subscribe(fn)
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.errs, _ = h.errs.Unsubscribe(id)
	}
}

// PushAction dispatches action to every store once the actions ahead of it
// have settled, and returns the map after this action.
//
// Returns ErrInvalidAction for a non-object action. A full queue holds the
// caller back until there is room; if ctx ends first the action is dropped
// and ctx's error returned. Once queued, cancelling ctx abandons the wait
// but the action still runs.
func (h *Handler) PushAction(ctx context.Context, action Action) (StoresMap, error) {
	if !validAction(action) {
		return StoresMap{}, ErrInvalidAction
	}
	result, err := h.submit(ctx, job{action: action})
	if err != nil {
		return StoresMap{}, err
	}
	return result.Wait(ctx)
}

// PushActions queues every action in order and returns the map after the
// last one. Earlier actions are observable through OnUpdate.
// Only the first action can be refused by ctx; once it is queued the rest
// follow it whatever happens to ctx.
func (h *Handler) PushActions(ctx context.Context, actions []Action) (StoresMap, error) {
	if len(actions) == 0 {
		return h.Stores(), nil
	}
	for _, a := range actions {
		if !validAction(a) {
			return StoresMap{}, ErrInvalidAction
		}
	}
	last, err := h.submit(ctx, job{action: actions[0]})
	if err != nil {
		return StoresMap{}, err
	}
	detached := context.WithoutCancel(ctx)
	for _, a := range actions[1:] {
		if last, err = h.submit(detached, job{action: a}); err != nil {
			return StoresMap{}, err
		}
	}
	return last.Wait(ctx)
}

// StartDispatchAt resumes action on the stores named in points, each from
// its starting point, once the actions ahead of it have settled. Other
// stores are untouched. Returns the whole map after the dispatch.
func (h *Handler) StartDispatchAt(ctx context.Context, action Action, points map[string]StartingPoint) (StoresMap, error) {
	if !validAction(action) {
		return StoresMap{}, ErrInvalidAction
	}
	if points == nil {
		return StoresMap{}, ErrInvalidStartingPoint
	}
	if _, ok := h.perf.(clientPerformer); ok {
		return StoresMap{}, ErrInvalidStartingPoint
	}
	result, err := h.submit(ctx, job{action: action, points: points})
	if err != nil {
		return StoresMap{}, err
	}
	return result.Wait(ctx)
}

// WaitIdle blocks until no dispatch is in flight or ctx is done.
func (h *Handler) WaitIdle(ctx context.Context) error {
	var bo iox.Backoff
	for h.Busy() {
		if err := ctx.Err(); err != nil {
			return err
		}
		bo.Wait()
	}
	return nil
}

// submit starts j if idle, or queues it behind the in-flight dispatch.
// While the queue is full it backs off and retries until ctx is done.
func (h *Handler) submit(ctx context.Context, j job) (*Placeholder[StoresMap], error) {
	j.ctx = context.WithoutCancel(ctx)
	j.serial = nextDispatchSerial()
	j.result = NewPlaceholder[StoresMap]()

	var bo iox.Backoff
	for waited := false; ; {
		h.mu.Lock()
		if !h.busy {
			h.busy = true
			base := h.stores
			h.mu.Unlock()
			go h.loop(base, j)
			return j.result, nil
		}
		err := h.queue.Enqueue(&j)
		if err == nil {
			h.queued++
			h.mu.Unlock()
			return j.result, nil
		}
		queued := h.queued
		h.mu.Unlock()
		if err != iox.ErrWouldBlock {
			return nil, err
		}
		if !waited {
			waited = true
			h.log.Debug("action queue full", "serial", j.serial, "queued", queued)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bo.Wait()
	}
}

// loop settles j, then every queued job, and returns the handler to idle.
func (h *Handler) loop(base StoresMap, j job) {
	for {
		base = h.settle(base, j)

		h.mu.Lock()
		next, err := h.queue.Dequeue()
		if err != nil {
			h.busy = false
			h.mu.Unlock()
			return
		}
		h.queued--
		h.mu.Unlock()
		j = next
	}
}

// drain removes and returns every queued job.
func (h *Handler) drain() []job {
	h.mu.Lock()
	defer h.mu.Unlock()
	jobs := make([]job, 0, h.queued)
	for {
		j, err := h.queue.Dequeue()
		if err != nil {
			break
		}
		jobs = append(jobs, j)
	}
	h.queued = 0
	return jobs
}

// settle performs j against base and reports the outcome to j's caller,
// to any callers whose jobs were absorbed, and to event listeners.
// Returns the map the next job starts from.
func (h *Handler) settle(base StoresMap, j job) StoresMap {
	ctx, span := h.tracer.Start(j.ctx, "isodispatch.dispatch", trace.WithAttributes(
		attribute.Int64("isodispatch.serial", int64(j.serial)),
		attribute.Int("isodispatch.stores", base.Len()),
		attribute.Bool("isodispatch.resume", j.points != nil),
	))
	defer span.End()
	h.log.Debug("dispatch start", "serial", j.serial, "stores", base.Len())

	updated, absorbed, err := h.perf.perform(ctx, h, base, j)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.log.Warn("dispatch failed", "serial", j.serial, "absorbed", len(absorbed), "err", err)

		h.mu.Lock()
		errs := h.errs
		h.mu.Unlock()
		errs.Publish(err)

		j.result.Reject(err)
		for _, a := range absorbed {
			a.result.Reject(err)
		}
		return base
	}

	next := base.Merge(updated)
	h.mu.Lock()
	h.stores = next
	updates := h.updates
	h.mu.Unlock()
	h.log.Debug("dispatch settled", "serial", j.serial, "updated", updated.Len(), "absorbed", len(absorbed))
	updates.Publish(next)

	j.result.Resolve(next)
	for _, a := range absorbed {
		a.result.Resolve(next)
	}
	return next
}
