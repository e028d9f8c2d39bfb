// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"code.hybscloud.com/isodispatch"
)

// TestClientDispatchMixedStoresDeadlockCoverage runs a client action over
// stores that pause, finish, fail, and have no updaters, all at once.
func TestClientDispatchMixedStoresDeadlockCoverage(t *testing.T) {
	finish := func(_ context.Context, points map[string]isodispatch.StartingPoint, _ []isodispatch.Action) (map[string]isodispatch.State, error) {
		states := make(map[string]isodispatch.State, len(points))
		for name := range points {
			states[name] = "done"
		}
		return states, nil
	}
	d, err := isodispatch.NewClientDispatcher(map[string]isodispatch.Storer{
		"pause1": register("", serverTag()),
		"pause2": register("", appendTag("x"), serverTag()),
		"local":  register(0, inc),
		"empty":  isodispatch.NewStore("e"),
		"fail": register(0, func(context.Context, isodispatch.State, isodispatch.Action, isodispatch.OnServer) (isodispatch.State, error) {
			return nil, errors.New("fail")
		}),
	}, finish)
	if err != nil {
		t.Fatalf("NewClientDispatcher: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), act("X"))
		done <- err
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected the failing store's error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client dispatch did not settle")
	}
}

// TestWaitIdleCancelled covers WaitIdle giving up on a busy handler.
func TestWaitIdleCancelled(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	h := isodispatch.NewHandler(mustStoresMap(t, map[string]isodispatch.Storer{
		"log": register("", gatedLog(gate)),
	}))
	go h.PushAction(context.Background(), act("BLOCK"))
	waitBusy(t, h)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.WaitIdle(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want %v", err, context.DeadlineExceeded)
	}
}
