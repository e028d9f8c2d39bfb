// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch_test

import (
	"context"
	"testing"

	"code.hybscloud.com/isodispatch"
)

// act returns an action of the given type.
func act(typ string) map[string]any {
	return map[string]any{"type": typ}
}

// actionType returns the "type" of an action built by act.
func actionType(a isodispatch.Action) string {
	m, _ := a.(map[string]any)
	t, _ := m["type"].(string)
	return t
}

// inc adds one to an int state.
func inc(_ context.Context, s isodispatch.State, _ isodispatch.Action, _ isodispatch.OnServer) (isodispatch.State, error) {
	return s.(int) + 1, nil
}

// appendTag returns an updater appending tag to a string state.
func appendTag(tag string) isodispatch.UpdateFunc {
	return func(_ context.Context, s isodispatch.State, _ isodispatch.Action, _ isodispatch.OnServer) (isodispatch.State, error) {
		return s.(string) + tag, nil
	}
}

// counterByType is an int store reacting to INCREMENT and DECREMENT.
func counterByType(_ context.Context, s isodispatch.State, a isodispatch.Action, _ isodispatch.OnServer) (isodispatch.State, error) {
	switch actionType(a) {
	case "INCREMENT":
		return s.(int) + 1, nil
	case "DECREMENT":
		return s.(int) - 1, nil
	}
	return s, nil
}

// serverTag returns an updater that appends the OnServer result to a
// string state. On a server the result is the argument, a string.
func serverTag() isodispatch.UpdateFunc {
	return func(_ context.Context, s isodispatch.State, _ isodispatch.Action, onServer isodispatch.OnServer) (isodispatch.State, error) {
		return onServer(func(arg any) (isodispatch.State, error) {
			return s.(string) + arg.(string), nil
		})
	}
}

// register builds a store from initial and fns.
func register(initial isodispatch.State, fns ...isodispatch.UpdateFunc) isodispatch.Storer {
	var st isodispatch.Storer = isodispatch.NewStore(initial)
	for _, fn := range fns {
		st = st.Register(fn)
	}
	return st
}

func mustStoresMap(t testing.TB, stores map[string]isodispatch.Storer) isodispatch.StoresMap {
	t.Helper()
	m, err := isodispatch.NewStoresMap(stores)
	if err != nil {
		t.Fatalf("NewStoresMap: %v", err)
	}
	return m
}

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("%s: expected panic", name)
		}
	}()
	fn()
}
