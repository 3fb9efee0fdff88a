// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ikmak/mongo-functions-go/document"
	"github.com/ikmak/mongo-functions-go/internal/emulator"
	"github.com/ikmak/mongo-functions-go/x/functions"
	"github.com/ikmak/mongo-functions-go/x/functions/operation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func newServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	emu, err := emulator.New()
	require.NoError(t, err)
	srv := httptest.NewServer(New(emu, opts))
	t.Cleanup(func() {
		srv.Close()
		_ = emu.Close()
	})
	return srv
}

func newTransport(t *testing.T, srv *httptest.Server, appID, token string) *functions.HTTPTransport {
	t.Helper()
	var tokens functions.TokenSource
	if token != "" {
		tokens = functions.StaticToken(token)
	}
	tr, err := functions.NewHTTPTransport(functions.HTTPOptions{BaseURL: srv.URL, AppID: appID, Tokens: tokens, Client: srv.Client()})
	require.NoError(t, err)
	return tr
}

func TestHandlerCall(t *testing.T) {
	t.Parallel()
	srv := newServer(t, Options{AppID: "app-1", Tokens: []string{"secret"}})
	tr := newTransport(t, srv, "app-1", "secret")
	ctx := context.Background()
	ns := operation.Namespace{DB: "db", Collection: "c"}

	doc, err := document.Marshal(bson.D{{"_id", "x"}, {"n", 1}})
	require.NoError(t, err)
	rv, err := tr.RoundTrip(ctx, operation.Request(emulator.DefaultServiceName, &operation.InsertOne{NS: ns, Document: doc}))
	require.NoError(t, err)
	id, err := operation.DecodeInsertedID(rv)
	require.NoError(t, err)
	assert.Equal(t, "x", id)

	rv, err = tr.RoundTrip(ctx, operation.Request(emulator.DefaultServiceName, &operation.Count{NS: ns}))
	require.NoError(t, err)
	n, err := operation.DecodeCount(rv)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = tr.RoundTrip(ctx, operation.Request(emulator.DefaultServiceName, &operation.InsertOne{NS: ns, Document: doc}))
	var se *functions.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, functions.CodeMongoDBError, se.Code)
	assert.Contains(t, se.Message, "E11000")
}

func TestHandlerErrors(t *testing.T) {
	t.Parallel()
	srv := newServer(t, Options{AppID: "app-1", Tokens: []string{"secret"}})
	count := operation.Request(emulator.DefaultServiceName, &operation.Count{NS: operation.Namespace{DB: "db", Collection: "c"}})

	testCases := []struct {
		name   string
		appID  string
		token  string
		req    *functions.Request
		status int
		code   string
	}{
		{"missing token", "app-1", "", count, http.StatusUnauthorized, functions.CodeInvalidSession},
		{"wrong token", "app-1", "guess", count, http.StatusUnauthorized, functions.CodeInvalidSession},
		{"unknown app", "app-2", "secret", count, http.StatusNotFound, functions.CodeAppNotFound},
		{"unknown function", "app-1", "secret", &functions.Request{Service: emulator.DefaultServiceName, Name: "nope"}, http.StatusBadRequest, functions.CodeFunctionNotFound},
		{"unknown service", "app-1", "secret", &functions.Request{Service: "svc", Name: operation.FuncCount}, http.StatusBadRequest, functions.CodeServiceNotFound},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := newTransport(t, srv, tc.appID, tc.token).RoundTrip(context.Background(), tc.req)
			var se *functions.ServiceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.status, se.StatusCode)
			assert.Equal(t, tc.code, se.Code)
		})
	}
}

func TestHandlerRawRequests(t *testing.T) {
	t.Parallel()
	srv := newServer(t, Options{})

	t.Run("health", func(t *testing.T) {
		t.Parallel()
		resp, err := srv.Client().Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"ok"}`, string(body))
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		resp, err := srv.Client().Post(srv.URL+functions.CallPath("any"), "application/json", strings.NewReader("{not json"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		se := functions.DecodeServiceError(resp.StatusCode, body)
		assert.Equal(t, functions.CodeArgumentsNotAllowed, se.Code)
	})

	t.Run("request id is echoed", func(t *testing.T) {
		t.Parallel()
		req, err := http.NewRequest(http.MethodPost, srv.URL+functions.CallPath("any"),
			strings.NewReader(`{"arguments":[{"database":"db","collection":"c"}],"name":"count","service":"mongodb-atlas"}`))
		require.NoError(t, err)
		req.Header.Set(functions.RequestIDHeader, "abc")
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "abc", resp.Header.Get(functions.RequestIDHeader))
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		rv, err := functions.DecodeResponse(body)
		require.NoError(t, err)
		n, err := operation.DecodeCount(rv)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("wrong method", func(t *testing.T) {
		t.Parallel()
		resp, err := srv.Client().Get(srv.URL + functions.CallPath("any"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
