// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package transport carries paused client dispatches to a server and the
// finished states back, as JSON over HTTP.
//
// A [Client] is an [code.hybscloud.com/isodispatch.FinishOnServerBatchFunc]:
// plug its FinishOnServer method into a client dispatcher. A [Server] resumes
// each request on a fresh server dispatcher from an
// [code.hybscloud.com/isodispatch.Factory].
//
// Request body:
//
//	{"startingPoints": {"<store>": {"index": N, "state": <state>}}, "actions": [<action>...]}
//
// Response body:
//
//	{"<store>": <state>}
//
// States and actions are encoded by a [Codec]; [JSONCodec] is the default.
package transport
