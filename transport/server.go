// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"code.hybscloud.com/isodispatch"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "code.hybscloud.com/isodispatch/transport"

// defaultMaxBodyBytes bounds a dispatch request body.
const defaultMaxBodyBytes = 1 << 20

// Server finishes client dispatches that paused on OnServer.
// For each POST it resumes the paused stores from their starting points on
// a fresh server dispatcher, applies the queued actions, and responds with
// the final states of the paused stores.
type Server struct {
	factory *isodispatch.Factory
	codec   Codec
	arg     func(*http.Request) any
	log     *slog.Logger
	tracer  trace.Tracer
	maxBody int64
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithOnServerArg derives the OnServer argument from each request.
// The default passes the request itself.
func WithOnServerArg(fn func(*http.Request) any) ServerOption {
	return func(s *Server) {
		s.arg = fn
	}
}

// WithServerLogger sets the server's logger. The default discards.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithServerTracerProvider sets the provider for request spans.
func WithServerTracerProvider(tp trace.TracerProvider) ServerOption {
	return func(s *Server) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// WithMaxBodyBytes bounds request bodies. The default is 1 MiB.
func WithMaxBodyBytes(n int64) ServerOption {
	return func(s *Server) {
		s.maxBody = n
	}
}

// NewServer returns a server resuming dispatches on dispatchers from f.
func NewServer(f *isodispatch.Factory, codec Codec, opts ...ServerOption) *Server {
	s := &Server{
		factory: f,
		codec:   codec,
		arg:     func(r *http.Request) any { return r },
		log:     slog.New(slog.DiscardHandler),
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
		maxBody: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := s.tracer.Start(ctx, "isodispatch.transport.serve", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		s.fail(w, span, http.StatusBadRequest, err)
		return
	}
	req, err := DecodeRequest(body, s.codec)
	if err != nil {
		s.fail(w, span, http.StatusBadRequest, err)
		return
	}
	span.SetAttributes(
		attribute.Int("isodispatch.paused", len(req.StartingPoints)),
		attribute.Int("isodispatch.actions", len(req.Actions)),
	)

	d, err := s.factory.After(ctx, s.arg(r), req.StartingPoints, req.Actions)
	if err != nil {
		s.fail(w, span, statusFor(err), err)
		return
	}

	states := make(map[string]isodispatch.State, len(req.StartingPoints))
	for name := range req.StartingPoints {
		if states[name], err = d.StateFor(name); err != nil {
			s.fail(w, span, http.StatusInternalServerError, err)
			return
		}
	}
	out, err := EncodeResponse(states, s.codec)
	if err != nil {
		s.fail(w, span, http.StatusInternalServerError, err)
		return
	}

	s.log.Debug("dispatch finished on server", "paused", len(req.StartingPoints), "actions", len(req.Actions))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) fail(w http.ResponseWriter, span trace.Span, status int, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	s.log.Warn("dispatch request failed", "status", status, "err", err)
	http.Error(w, err.Error(), status)
}

// statusFor maps a dispatch error to an HTTP status: validation failures
// are the client's, everything else the server's.
func statusFor(err error) int {
	switch {
	case errors.Is(err, isodispatch.ErrInvalidAction),
		errors.Is(err, isodispatch.ErrInvalidStartingPoint),
		errors.Is(err, isodispatch.ErrUnknownStore):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
