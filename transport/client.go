// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"code.hybscloud.com/isodispatch"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// maxErrorBody bounds how much of a failed response is kept in a StatusError.
const maxErrorBody = 4 << 10

// StatusError is a non-2xx response from a dispatch server.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: server responded %d: %s", e.Code, e.Body)
}

// Client sends paused dispatches to a Server.
type Client struct {
	url    string
	codec  Codec
	http   *http.Client
	tracer trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client. The default is http.DefaultClient.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithClientTracerProvider sets the provider for round-trip spans.
func WithClientTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// NewClient returns a client posting to url.
func NewClient(url string, codec Codec, opts ...ClientOption) *Client {
	c := &Client{
		url:    url,
		codec:  codec,
		http:   http.DefaultClient,
		tracer: otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ isodispatch.FinishOnServerBatchFunc = (*Client)(nil).FinishOnServer

// FinishOnServer posts the pause points and actions and returns the final
// state of every paused store. It is an isodispatch.FinishOnServerBatchFunc.
func (c *Client) FinishOnServer(ctx context.Context, points map[string]isodispatch.StartingPoint, actions []isodispatch.Action) (map[string]isodispatch.State, error) {
	ctx, span := c.tracer.Start(ctx, "isodispatch.transport.finishOnServer", trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.Int("isodispatch.paused", len(points)),
		attribute.Int("isodispatch.actions", len(actions)),
	))
	defer span.End()

	states, err := c.roundTrip(ctx, points, actions)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return states, nil
}

func (c *Client) roundTrip(ctx context.Context, points map[string]isodispatch.StartingPoint, actions []isodispatch.Action) (map[string]isodispatch.State, error) {
	body, err := EncodeRequest(Request{StartingPoints: points, Actions: actions}, c.codec)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return DecodeResponse(out, c.codec)
}
