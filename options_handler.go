// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope of dispatch spans.
const tracerName = "code.hybscloud.com/isodispatch"

// defaultQueueCapacity bounds the actions waiting behind an in-flight dispatch.
const defaultQueueCapacity = 64

// Option configures a Handler or Dispatcher.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	tracer        trace.TracerProvider
	queueCapacity int
}

// WithLogger sets the structured logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTracerProvider sets the provider for dispatch spans.
// The default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp
	}
}

// WithQueueCapacity bounds the number of queued actions, rounded up to a
// power of two. Pushing beyond it holds the caller until a queued action
// starts.
func WithQueueCapacity(n int) Option {
	return func(o *options) {
		o.queueCapacity = n
	}
}

func buildOptions(opts []Option) options {
	o := options{queueCapacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.tracer == nil {
		o.tracer = otel.GetTracerProvider()
	}
	o.queueCapacity = roundPow2(o.queueCapacity)
	return o
}

// roundPow2 rounds n up to a power of two, minimum 2.
func roundPow2(n int) int {
	c := 2
	for c < n {
		c <<= 1
	}
	return c
}
