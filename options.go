// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

// DispatchOption configures a single Dispatch or StartDispatchAt call.
type DispatchOption func(*dispatchSettings)

type dispatchSettings struct {
	finish   FinishOnServerFunc
	arg      any
	hasArg   bool
	finished func()

	override bool
	conflict bool
}

// WithFinishOnServer dispatches in pause mode with fn as the continuation,
// replacing the store's own server-mode configuration for this call.
func WithFinishOnServer(fn FinishOnServerFunc) DispatchOption {
	return func(s *dispatchSettings) {
		if s.override && s.hasArg {
			s.conflict = true
		}
		s.override = true
		s.finish = fn
	}
}

// WithOnServerArg dispatches in server-argument mode with arg,
// replacing the store's own server-mode configuration for this call.
func WithOnServerArg(arg any) DispatchOption {
	return func(s *dispatchSettings) {
		if s.override && s.finish != nil {
			s.conflict = true
		}
		s.override = true
		s.arg = arg
		s.hasArg = true
	}
}

// WithFinishedUpdaters registers fn to be called once the chain has run
// to its end locally, without pausing.
func WithFinishedUpdaters(fn func()) DispatchOption {
	return func(s *dispatchSettings) {
		s.finished = fn
	}
}

// settingsFor merges opts over the store's configuration.
func (s *Store) settingsFor(opts []DispatchOption) (*dispatchSettings, error) {
	var o dispatchSettings
	for _, opt := range opts {
		opt(&o)
	}
	if o.conflict {
		return nil, ErrServerModeConflict
	}
	if !o.override {
		o.finish = s.finish
		o.arg = s.arg
		o.hasArg = s.hasArg
	}
	return &o, nil
}
