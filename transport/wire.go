// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"code.hybscloud.com/isodispatch"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrMalformed reports a request or response body that does not follow
// the dispatch wire format.
var ErrMalformed = errors.New("transport: malformed dispatch message")

// Request is a paused client dispatch: where each paused store stopped, and
// the actions to finish, the pausing action first.
type Request struct {
	StartingPoints map[string]isodispatch.StartingPoint
	Actions        []isodispatch.Action
}

// EncodeRequest renders req as
//
//	{"startingPoints": {"<store>": {"index": N, "state": <state>}}, "actions": [<action>...]}
//
// with states and actions encoded by c and embedded as raw JSON.
func EncodeRequest(req Request, c Codec) ([]byte, error) {
	body := []byte(`{"startingPoints":{},"actions":[]}`)
	for _, name := range sortedKeys(req.StartingPoints) {
		at := req.StartingPoints[name]
		raw, err := c.EncodeState(name, at.State)
		if err != nil {
			return nil, err
		}
		path := "startingPoints." + escapeKey(name)
		if body, err = sjson.SetBytes(body, path+".index", at.Index); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		if body, err = sjson.SetRawBytes(body, path+".state", raw); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	for _, a := range req.Actions {
		raw, err := c.EncodeAction(a)
		if err != nil {
			return nil, err
		}
		if body, err = sjson.SetRawBytes(body, "actions.-1", raw); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	return body, nil
}

// DecodeRequest parses a body produced by EncodeRequest.
func DecodeRequest(body []byte, c Codec) (Request, error) {
	if !gjson.ValidBytes(body) {
		return Request{}, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(body)

	points := root.Get("startingPoints")
	if !points.IsObject() {
		return Request{}, fmt.Errorf("%w: startingPoints must be an object", ErrMalformed)
	}
	req := Request{StartingPoints: make(map[string]isodispatch.StartingPoint)}
	var err error
	points.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		index := value.Get("index")
		state := value.Get("state")
		if !value.IsObject() || index.Type != gjson.Number || !state.Exists() {
			err = fmt.Errorf("%w: starting point of store(%s) must contain index and state", ErrMalformed, name)
			return false
		}
		var s isodispatch.State
		if s, err = c.DecodeState(name, []byte(state.Raw)); err != nil {
			return false
		}
		req.StartingPoints[name] = isodispatch.StartingPoint{State: s, Index: int(index.Int())}
		return true
	})
	if err != nil {
		return Request{}, err
	}

	actions := root.Get("actions")
	if !actions.IsArray() {
		return Request{}, fmt.Errorf("%w: actions must be an array", ErrMalformed)
	}
	for _, raw := range actions.Array() {
		a, err := c.DecodeAction([]byte(raw.Raw))
		if err != nil {
			return Request{}, err
		}
		req.Actions = append(req.Actions, a)
	}
	return req, nil
}

// EncodeResponse renders states as {"<store>": <state>}.
func EncodeResponse(states map[string]isodispatch.State, c StateCodec) ([]byte, error) {
	body := []byte(`{}`)
	for _, name := range sortedKeys(states) {
		raw, err := c.EncodeState(name, states[name])
		if err != nil {
			return nil, err
		}
		if body, err = sjson.SetRawBytes(body, escapeKey(name), raw); err != nil {
			return nil, fmt.Errorf("encode response: %w", err)
		}
	}
	return body, nil
}

// DecodeResponse parses a body produced by EncodeResponse.
func DecodeResponse(body []byte, c StateCodec) (map[string]isodispatch.State, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: response must be an object", ErrMalformed)
	}
	states := make(map[string]isodispatch.State)
	var err error
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		var s isodispatch.State
		if s, err = c.DecodeState(name, []byte(value.Raw)); err != nil {
			return false
		}
		states[name] = s
		return true
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// pathEscaper escapes characters with a meaning in gjson/sjson paths.
var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
)

func escapeKey(key string) string {
	return pathEscaper.Replace(key)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
