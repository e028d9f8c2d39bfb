// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"net/http"

	"code.hybscloud.com/isodispatch"
	"code.hybscloud.com/isodispatch/transport"
)

type counterState struct {
	Count int `json:"count"`
}

type auditState struct {
	LastAction string `json:"lastAction"`
	Origin     string `json:"origin"`
	Seen       int    `json:"seen"`
}

// demoStores returns the stores served by the daemon: a counter updated
// entirely on the client, and an audit log whose second updater needs the
// server's request.
func demoStores() map[string]isodispatch.Storer {
	counter := isodispatch.NewStore(counterState{}).Register(
		func(_ context.Context, s isodispatch.State, a isodispatch.Action, _ isodispatch.OnServer) (isodispatch.State, error) {
			st := s.(counterState)
			switch actionType(a) {
			case "INCREMENT":
				st.Count++
			case "DECREMENT":
				st.Count--
			}
			return st, nil
		})

	audit := isodispatch.NewStore(auditState{}).Register(
		func(_ context.Context, s isodispatch.State, a isodispatch.Action, _ isodispatch.OnServer) (isodispatch.State, error) {
			st := s.(auditState)
			st.LastAction = actionType(a)
			st.Seen++
			return st, nil
		}).Register(
		func(_ context.Context, s isodispatch.State, _ isodispatch.Action, onServer isodispatch.OnServer) (isodispatch.State, error) {
			return onServer(func(arg any) (isodispatch.State, error) {
				st := s.(auditState)
				st.Origin = "local"
				if r, ok := arg.(*http.Request); ok {
					st.Origin = r.RemoteAddr
				}
				return st, nil
			})
		})

	return map[string]isodispatch.Storer{"counter": counter, "audit": audit}
}

func demoCodec() transport.JSONCodec {
	return transport.JSONCodec{States: map[string]func() any{
		"counter": transport.JSONType[counterState](),
		"audit":   transport.JSONType[auditState](),
	}}
}

func actionType(a isodispatch.Action) string {
	if m, ok := a.(map[string]any); ok {
		if t, ok := m["type"].(string); ok {
			return t
		}
	}
	return ""
}
