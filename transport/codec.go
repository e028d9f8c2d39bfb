// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"encoding/json"
	"fmt"
	"reflect"

	"code.hybscloud.com/isodispatch"
)

// StateCodec encodes and decodes store states, keyed by store name.
// Encoded states must be valid JSON values.
type StateCodec interface {
	EncodeState(store string, state isodispatch.State) ([]byte, error)
	DecodeState(store string, raw []byte) (isodispatch.State, error)
}

// ActionCodec encodes and decodes actions. Encoded actions must be valid
// JSON values.
type ActionCodec interface {
	EncodeAction(action isodispatch.Action) ([]byte, error)
	DecodeAction(raw []byte) (isodispatch.Action, error)
}

// Codec is the full codec a transport endpoint needs.
type Codec interface {
	StateCodec
	ActionCodec
}

// JSONCodec encodes states and actions with encoding/json.
//
// A store listed in States decodes into a fresh value from its
// constructor; other stores decode into any. Actions decode into
// map[string]any unless Action is set.
type JSONCodec struct {
	States map[string]func() any
	Action func() any
}

var _ Codec = JSONCodec{}

// JSONType returns a constructor for States or Action that decodes into S.
func JSONType[S any]() func() any {
	return func() any { return new(S) }
}

func (c JSONCodec) EncodeState(store string, state isodispatch.State) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state of store(%s): %w", store, err)
	}
	return raw, nil
}

func (c JSONCodec) DecodeState(store string, raw []byte) (isodispatch.State, error) {
	v, err := decodeInto(c.States[store], raw)
	if err != nil {
		return nil, fmt.Errorf("decode state of store(%s): %w", store, err)
	}
	return v, nil
}

func (c JSONCodec) EncodeAction(action isodispatch.Action) ([]byte, error) {
	raw, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}
	return raw, nil
}

func (c JSONCodec) DecodeAction(raw []byte) (isodispatch.Action, error) {
	newAction := c.Action
	if newAction == nil {
		newAction = JSONType[map[string]any]()
	}
	v, err := decodeInto(newAction, raw)
	if err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	return v, nil
}

// decodeInto unmarshals raw into a value from newValue, or into any when
// newValue is nil, and returns the value rather than the pointer.
func decodeInto(newValue func() any, raw []byte) (any, error) {
	if newValue == nil {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	p := newValue()
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, err
	}
	return reflect.ValueOf(p).Elem().Interface(), nil
}
