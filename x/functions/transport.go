// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package functions is the client side of the remote function-call contract: a request is a
// service name, a function name and an array of argument documents, and the reply is a
// single BSON value or a service error.
//
// Transport implementations perform one blocking round trip. The Dispatcher turns them into
// asynchronous calls with bounded concurrency.
package functions

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Transport performs a single function call and blocks until the reply is available.
// Failures to reach the service are reported as *TransportError and errors returned by the
// service as *ServiceError.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (bson.RawValue, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (bson.RawValue, error)

// RoundTrip calls f(ctx, req).
func (f TransportFunc) RoundTrip(ctx context.Context, req *Request) (bson.RawValue, error) {
	return f(ctx, req)
}

// TokenSource supplies the bearer token of the current session.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }
