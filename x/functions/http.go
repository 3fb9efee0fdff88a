// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package functions

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

// CallPath returns the path of the functions call endpoint of appID.
func CallPath(appID string) string {
	return "/api/client/v2.0/app/" + url.PathEscape(appID) + "/functions/call"
}

// RequestIDHeader carries the id of a single HTTP function call.
const RequestIDHeader = "X-Request-Id"

// maxResponseSize bounds the size of a response body read into memory.
const maxResponseSize = 64 << 20

// HTTPOptions configures an HTTPTransport.
type HTTPOptions struct {
	// BaseURL is the scheme and host of the function service, e.g. https://realm.mongodb.com.
	BaseURL string
	AppID   string
	// Tokens provides the bearer token. A nil TokenSource sends no Authorization header.
	Tokens TokenSource
	// Client defaults to a client with a 60 second timeout.
	Client *http.Client
	Logger logrus.FieldLogger
}

// HTTPTransport calls functions over the client HTTP API.
type HTTPTransport struct {
	endpoint string
	tokens   TokenSource
	client   *http.Client
	logger   logrus.FieldLogger
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport validates opts and creates an HTTPTransport.
func NewHTTPTransport(opts HTTPOptions) (*HTTPTransport, error) {
	if opts.AppID == "" {
		return nil, errors.New("an app id is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base url %q", opts.BaseURL)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("base url %q must use http or https", opts.BaseURL)
	}

	t := &HTTPTransport{
		endpoint: base.String() + CallPath(opts.AppID),
		tokens:   opts.Tokens,
		client:   opts.Client,
		logger:   opts.Logger,
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 60 * time.Second}
	}
	if t.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		t.logger = l
	}
	return t, nil
}

// Endpoint returns the URL requests are posted to.
func (t *HTTPTransport) Endpoint() string { return t.endpoint }

// RoundTrip implements Transport.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (bson.RawValue, error) {
	body, err := EncodeRequest(req)
	if err != nil {
		return bson.RawValue{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return bson.RawValue{}, &TransportError{Op: "request", Err: err}
	}
	requestID := uuid.New().String()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if t.tokens != nil {
		token, err := t.tokens.Token(ctx)
		if err != nil {
			return bson.RawValue{}, &TransportError{Op: "token", Err: err}
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	log := t.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"service":    req.Service,
		"function":   req.Name,
	})
	log.Debug("posting function call")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return bson.RawValue{}, &TransportError{Op: "send", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return bson.RawValue{}, &TransportError{Op: "receive", Err: err}
	}
	log.WithField("status", resp.StatusCode).Debug("function call answered")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := DecodeServiceError(resp.StatusCode, respBody)
		if se.Code == CodeUnknown && isGatewayStatus(resp.StatusCode) {
			return bson.RawValue{}, &TransportError{Op: "receive", Err: errors.Errorf("gateway responded with %s: %s", resp.Status, se.Message)}
		}
		return bson.RawValue{}, se
	}
	return DecodeResponse(respBody)
}

// isGatewayStatus reports whether status is produced by a proxy in front of the service
// rather than by the service itself.
func isGatewayStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
