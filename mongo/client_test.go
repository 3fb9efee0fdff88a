// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ikmak/mongo-functions-go/event"
	"github.com/ikmak/mongo-functions-go/internal/emulator"
	"github.com/ikmak/mongo-functions-go/mongo/options"
	"github.com/ikmak/mongo-functions-go/x/functions"
	"github.com/ikmak/mongo-functions-go/x/functions/operation"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestClientDisconnect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	em, err := emulator.New()
	require.NoError(t, err)
	defer em.Close()

	client := NewClient(em)
	coll := client.Database("db").Collection("coll")
	_, err = coll.InsertOne(ctx, item{ID: 1}).Wait()
	require.NoError(t, err)

	require.NoError(t, client.Disconnect(ctx))
	_, err = coll.Count(ctx, nil).Wait()
	assert.Equal(t, ErrClientDisconnected, err)
	assert.Equal(t, ErrClientDisconnected, client.Disconnect(ctx))
}

func TestClientDisconnectWaitsForInFlight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	transport := functions.TransportFunc(func(ctx context.Context, req *functions.Request) (bson.RawValue, error) {
		close(started)
		<-release
		return functions.DecodeResponse([]byte(`{"$numberLong":"5"}`))
	})
	client := NewClient(transport)
	f := client.Database("db").Collection("coll").Count(context.Background(), nil)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Equal(t, context.DeadlineExceeded, client.Disconnect(ctx))

	close(release)
	n, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestClientOptions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var mu sync.Mutex
	var requests []*functions.Request
	var started, succeeded int
	transport := functions.TransportFunc(func(ctx context.Context, req *functions.Request) (bson.RawValue, error) {
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()
		return functions.DecodeResponse([]byte(`3`))
	})
	monitor := &event.FunctionMonitor{
		Started: func(context.Context, *event.FunctionStartedEvent) {
			mu.Lock()
			started++
			mu.Unlock()
		},
		Succeeded: func(context.Context, *event.FunctionSucceededEvent) {
			mu.Lock()
			succeeded++
			mu.Unlock()
		},
	}

	client := NewClient(transport, options.Client().SetServiceName("svc").SetMonitor(monitor).SetMaxConcurrentCalls(1))
	assert.Equal(t, "svc", client.ServiceName())

	n, err := client.Database("db").Collection("c").Count(ctx, bson.D{{"a", 1}}).Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requests, 1)
	assert.Equal(t, "svc", requests[0].Service)
	assert.Equal(t, operation.FuncCount, requests[0].Name)
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, succeeded)
}

func TestClientTransportFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()
		transport := functions.TransportFunc(func(context.Context, *functions.Request) (bson.RawValue, error) {
			return bson.RawValue{}, &functions.TransportError{Op: "post", Err: errors.New("connection refused")}
		})
		_, err := NewClient(transport).Database("db").Collection("c").InsertOne(ctx, item{ID: 1}).Wait()
		assert.True(t, IsTransportError(err), "unexpected error %v", err)
	})

	t.Run("call timeout", func(t *testing.T) {
		t.Parallel()
		transport := functions.TransportFunc(func(ctx context.Context, _ *functions.Request) (bson.RawValue, error) {
			<-ctx.Done()
			return bson.RawValue{}, ctx.Err()
		})
		client := NewClient(transport, options.Client().SetCallTimeout(10*time.Millisecond))
		_, err := client.Database("db").Collection("c").DeleteOne(ctx, nil).Wait()
		assert.True(t, IsTransportError(err), "unexpected error %v", err)
	})

	t.Run("malformed reply", func(t *testing.T) {
		t.Parallel()
		transport := functions.TransportFunc(func(context.Context, *functions.Request) (bson.RawValue, error) {
			return functions.DecodeResponse([]byte(`"nope"`))
		})
		_, err := NewClient(transport).Database("db").Collection("c").UpdateOne(ctx, nil, bson.D{{"$set", bson.D{{"a", 1}}}}).Wait()
		var re *operation.ResponseError
		require.True(t, errors.As(err, &re), "unexpected error %v", err)
		assert.Equal(t, operation.FuncUpdateOne, re.Function)
	})
}
