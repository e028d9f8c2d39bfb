// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import (
	"errors"
	"fmt"
)

// Validation errors. These are returned before any updater runs.
var (
	ErrInvalidAction        = errors.New("isodispatch: actions must be objects")
	ErrInvalidStartingPoint = errors.New("isodispatch: starting point must contain index and state")
	ErrInvalidStore         = errors.New("isodispatch: invalid store")
	ErrUnknownStore         = errors.New("isodispatch: store does not exist")
	ErrServerModeConflict   = errors.New("isodispatch: unable to use both a finish on server function and argument")
	ErrNotSubscribed        = errors.New("isodispatch: subscriber not found")
	ErrAlreadyUnsubscribed  = errors.New("isodispatch: subscriber has already been removed from the dispatcher")
)

// ErrNoState reports an updater that completed without returning a state.
var ErrNoState = errors.New("isodispatch: a state must be returned from each updater")

// ErrFinishingOnServer is returned by OnServer in pause mode.
// The chain stops at the calling updater and waits for the server result;
// whatever the updater returns afterwards is ignored.
var ErrFinishingOnServer = errors.New("isodispatch: finishing on server")

// UpdaterError wraps a failure raised by the updater at Index.
type UpdaterError struct {
	Index int
	Err   error
}

func (e *UpdaterError) Error() string {
	return fmt.Sprintf("isodispatch: updater %d: %v", e.Index, e.Err)
}

func (e *UpdaterError) Unwrap() error { return e.Err }

// ProtocolError reports a finish-on-server response that does not match
// the stores that paused: a missing store or an unrequested one.
type ProtocolError struct {
	Store  string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("isodispatch: %s store(%s) returned from server", e.Reason, e.Store)
}

// StoreError attributes a dispatch failure to a named store.
type StoreError struct {
	Store string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("isodispatch: store(%s): %v", e.Store, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
