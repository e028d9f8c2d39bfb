// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import "reflect"

// Action describes an intent to change state. Any non-nil map or struct
// (or pointer to one) is an action; its shape is left to the updaters.
type Action = any

// State is a store's domain state, opaque to the dispatch machinery.
// A nil State means "no state" and is never a valid result.
type State = any

// StartingPoint is a checkpoint into a store's updater chain: the state to
// feed into the updater at Index.
type StartingPoint struct {
	State State
	Index int
}

// validAction reports whether a is an object.
func validAction(a Action) bool {
	v := reflect.ValueOf(a)
	if !v.IsValid() {
		return false
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map:
		return !v.IsNil()
	case reflect.Struct:
		return true
	}
	return false
}

// validate checks p against a chain of n updaters.
func (p StartingPoint) validate(n int) error {
	if p.State == nil || p.Index < 0 || p.Index >= n {
		return ErrInvalidStartingPoint
	}
	return nil
}
