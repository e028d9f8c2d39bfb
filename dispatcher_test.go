// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"code.hybscloud.com/isodispatch"
)

func newCounterDispatcher(t *testing.T) *isodispatch.Dispatcher {
	t.Helper()
	d, err := isodispatch.NewDispatcher(map[string]isodispatch.Storer{
		"count": register(0, counterByType),
		"log":   register("", func(_ context.Context, s isodispatch.State, a isodispatch.Action, _ isodispatch.OnServer) (isodispatch.State, error) {
			return s.(string) + actionType(a)[:1], nil
		}),
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func TestDispatcherFanOut(t *testing.T) {
	d := newCounterDispatcher(t)
	states, err := d.Dispatch(context.Background(), act("INCREMENT"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if want := map[string]isodispatch.State{"count": 1, "log": "I"}; !reflect.DeepEqual(states, want) {
		t.Fatalf("got %v, want %v", states, want)
	}
	if got := d.StateForAll(); !reflect.DeepEqual(got, states) {
		t.Fatalf("StateForAll got %v, want %v", got, states)
	}
}

func TestDispatcherDispatchActions(t *testing.T) {
	d := newCounterDispatcher(t)
	states, err := d.DispatchActions(context.Background(), []isodispatch.Action{
		act("INCREMENT"), act("INCREMENT"), act("DECREMENT"),
	})
	if err != nil {
		t.Fatalf("DispatchActions: %v", err)
	}
	if want := map[string]isodispatch.State{"count": 1, "log": "IID"}; !reflect.DeepEqual(states, want) {
		t.Fatalf("got %v, want %v", states, want)
	}
}

func TestDispatcherStateFor(t *testing.T) {
	d := newCounterDispatcher(t)
	if _, err := d.Dispatch(context.Background(), act("INCREMENT")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got, err := d.StateFor("count")
	if err != nil || got != 1 {
		t.Fatalf("got %v, %v, want 1, nil", got, err)
	}
	if _, err := d.StateFor("nope"); !errors.Is(err, isodispatch.ErrUnknownStore) {
		t.Fatalf("got %v, want %v", err, isodispatch.ErrUnknownStore)
	}
}

func TestDispatcherSubscribeToAll(t *testing.T) {
	ctx := context.Background()
	d := newCounterDispatcher(t)
	var got []map[string]isodispatch.State
	unsubscribe := d.SubscribeToAll(func(states map[string]isodispatch.State) {
		got = append(got, states)
	})

	if _, err := d.Dispatch(ctx, act("INCREMENT")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if err := unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := unsubscribe(); !errors.Is(err, isodispatch.ErrAlreadyUnsubscribed) {
		t.Fatalf("second unsubscribe got %v, want %v", err, isodispatch.ErrAlreadyUnsubscribed)
	}
	if _, err := d.Dispatch(ctx, act("INCREMENT")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}

	want := []map[string]isodispatch.State{{"count": 1, "log": "I"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDispatcherFanOutToManySubscribers(t *testing.T) {
	ctx := context.Background()
	d := newCounterDispatcher(t)
	const n = 3
	got := make([][]map[string]isodispatch.State, n)
	for i := range n {
		d.SubscribeToAll(func(states map[string]isodispatch.State) {
			got[i] = append(got[i], states)
		})
	}
	states, err := d.Dispatch(ctx, act("INCREMENT"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	for i := range n {
		if len(got[i]) != 1 || !reflect.DeepEqual(got[i][0], states) {
			t.Fatalf("subscriber %d got %v, want one %v", i, got[i], states)
		}
	}
}

func TestDispatcherNoEventOnFailure(t *testing.T) {
	ctx := context.Background()
	d, err := isodispatch.NewDispatcher(map[string]isodispatch.Storer{
		"bad": register(0, func(context.Context, isodispatch.State, isodispatch.Action, isodispatch.OnServer) (isodispatch.State, error) {
			return nil, errors.New("no")
		}),
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	calls := 0
	d.SubscribeToAll(func(map[string]isodispatch.State) { calls++ })
	if _, err := d.Dispatch(ctx, act("X")); err == nil {
		t.Fatal("expected error")
	}
	if err := d.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if calls != 0 {
		t.Fatalf("calls got %d, want 0", calls)
	}
}

func TestDispatcherSubscribeTo(t *testing.T) {
	ctx := context.Background()
	d := newCounterDispatcher(t)
	var got []isodispatch.State
	unsubscribe, err := d.SubscribeTo("count", func(s isodispatch.State) { got = append(got, s) })
	if err != nil {
		t.Fatalf("SubscribeTo: %v", err)
	}
	if _, err := d.DispatchActions(ctx, []isodispatch.Action{act("INCREMENT"), act("INCREMENT")}); err != nil {
		t.Fatalf("DispatchActions: %v", err)
	}
	if err := d.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if err := unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if want := []isodispatch.State{1, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if _, err := d.SubscribeTo("nope", func(isodispatch.State) {}); !errors.Is(err, isodispatch.ErrUnknownStore) {
		t.Fatalf("got %v, want %v", err, isodispatch.ErrUnknownStore)
	}
}

func TestNewDispatcherInvalidStores(t *testing.T) {
	if _, err := isodispatch.NewDispatcher(map[string]isodispatch.Storer{"a": nil}); !errors.Is(err, isodispatch.ErrInvalidStore) {
		t.Fatalf("got %v, want %v", err, isodispatch.ErrInvalidStore)
	}
	if _, err := isodispatch.NewClientDispatcher(map[string]isodispatch.Storer{}, nil); !errors.Is(err, isodispatch.ErrInvalidStore) {
		t.Fatalf("got %v, want %v", err, isodispatch.ErrInvalidStore)
	}
}

func TestServerDispatcherOnServerArg(t *testing.T) {
	d, err := isodispatch.NewServerDispatcher(map[string]isodispatch.Storer{
		"s": register("", appendTag("a"), serverTag()),
	}, "@req")
	if err != nil {
		t.Fatalf("NewServerDispatcher: %v", err)
	}
	states, err := d.Dispatch(context.Background(), act("X"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := states["s"]; got != "a@req" {
		t.Fatalf("got %v, want %q", got, "a@req")
	}
}

func TestServerDispatcherStartDispatchAt(t *testing.T) {
	ctx := context.Background()
	d, err := isodispatch.NewServerDispatcher(map[string]isodispatch.Storer{
		"a": register("", appendTag("1"), serverTag(), appendTag("3")),
		"b": register("", appendTag("x")),
	}, "!")
	if err != nil {
		t.Fatalf("NewServerDispatcher: %v", err)
	}

	states, err := d.StartDispatchAt(ctx, act("X"), map[string]isodispatch.StartingPoint{"a": {State: "1", Index: 1}})
	if err != nil {
		t.Fatalf("StartDispatchAt: %v", err)
	}
	if want := map[string]isodispatch.State{"a": "1!3"}; !reflect.DeepEqual(states, want) {
		t.Fatalf("got %v, want %v", states, want)
	}
	if got, _ := d.StateFor("b"); got != "" {
		t.Fatalf("b got %v, want empty", got)
	}

	cases := []struct {
		name   string
		action isodispatch.Action
		points map[string]isodispatch.StartingPoint
		want   error
	}{
		{"invalid action", "X", map[string]isodispatch.StartingPoint{}, isodispatch.ErrInvalidAction},
		{"nil points", act("X"), nil, isodispatch.ErrInvalidStartingPoint},
		{"unknown store", act("X"), map[string]isodispatch.StartingPoint{"zzz": {State: "s"}}, isodispatch.ErrUnknownStore},
		{"nil state", act("X"), map[string]isodispatch.StartingPoint{"a": {Index: 1}}, isodispatch.ErrInvalidStartingPoint},
		{"index out of range", act("X"), map[string]isodispatch.StartingPoint{"a": {State: "s", Index: 3}}, isodispatch.ErrInvalidStartingPoint},
	}
	for _, tc := range cases {
		if _, err := d.StartDispatchAt(ctx, tc.action, tc.points); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestServerDispatcherClone(t *testing.T) {
	ctx := context.Background()
	d, err := isodispatch.NewServerDispatcher(map[string]isodispatch.Storer{
		"s": register("", serverTag()),
	}, "a")
	if err != nil {
		t.Fatalf("NewServerDispatcher: %v", err)
	}
	var seen []isodispatch.State
	if _, err := d.SubscribeTo("s", func(s isodispatch.State) { seen = append(seen, s) }); err != nil {
		t.Fatalf("SubscribeTo: %v", err)
	}
	if _, err := d.Dispatch(ctx, act("X")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}

	clone := d.CloneWithOnServerArg("b")
	if got, _ := clone.StateFor("s"); got != "a" {
		t.Fatalf("clone state got %v, want %q", got, "a")
	}
	if _, err := clone.Dispatch(ctx, act("X")); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := clone.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if got, _ := d.StateFor("s"); got != "a" {
		t.Fatalf("original state got %v, want %q", got, "a")
	}
	if want := []isodispatch.State{"a", "ab"}; !reflect.DeepEqual(seen, want) {
		t.Fatalf("subscriber got %v, want %v", seen, want)
	}
}

func TestClientDispatcherRoundTrip(t *testing.T) {
	ctx := context.Background()
	stores := func() map[string]isodispatch.Storer {
		return map[string]isodispatch.Storer{
			"count": register(0, counterByType),
			"tag":   register("", appendTag("<"), serverTag(), appendTag(">")),
		}
	}
	server, err := isodispatch.NewFactory(stores())
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	finish := func(ctx context.Context, points map[string]isodispatch.StartingPoint, actions []isodispatch.Action) (map[string]isodispatch.State, error) {
		d, err := server.After(ctx, "srv", points, actions)
		if err != nil {
			return nil, err
		}
		states := make(map[string]isodispatch.State, len(points))
		for name := range points {
			if states[name], err = d.StateFor(name); err != nil {
				return nil, err
			}
		}
		return states, nil
	}

	client, err := isodispatch.NewClientDispatcher(stores(), finish)
	if err != nil {
		t.Fatalf("NewClientDispatcher: %v", err)
	}
	states, err := client.Dispatch(ctx, act("INCREMENT"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if want := map[string]isodispatch.State{"count": 1, "tag": "<srv>"}; !reflect.DeepEqual(states, want) {
		t.Fatalf("got %v, want %v", states, want)
	}

	// The same action dispatched on a server from scratch ends identically.
	direct := server.Initial("srv")
	want, err := direct.Dispatch(ctx, act("INCREMENT"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !reflect.DeepEqual(states, want) {
		t.Fatalf("client got %v, server got %v", states, want)
	}
}
