// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"
	"io"

	"github.com/ikmak/mongo-functions-go/future"
	"github.com/ikmak/mongo-functions-go/mongo/options"
	"github.com/ikmak/mongo-functions-go/x/functions"
	"github.com/ikmak/mongo-functions-go/x/functions/operation"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

// Client performs operations on a remote mongo service. It is safe for concurrent use by
// multiple goroutines.
type Client struct {
	dispatcher *functions.Dispatcher
	service    string
	logger     logrus.FieldLogger
}

// NewClient creates a Client that sends its function calls through t.
func NewClient(t functions.Transport, opts ...*options.ClientOptions) *Client {
	clientOpt := options.MergeClientOptions(opts...)

	c := &Client{
		service: options.DefaultServiceName,
		logger:  clientOpt.Logger,
	}
	if clientOpt.ServiceName != nil {
		c.service = *clientOpt.ServiceName
	}
	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}

	dispOpts := functions.DispatcherOptions{
		Monitor:     clientOpt.Monitor,
		PoolMonitor: clientOpt.DispatcherMonitor,
		Logger:      c.logger,
	}
	if clientOpt.MaxConcurrentCalls != nil {
		dispOpts.MaxConcurrentCalls = *clientOpt.MaxConcurrentCalls
	}
	if clientOpt.CallTimeout != nil {
		dispOpts.CallTimeout = *clientOpt.CallTimeout
	}
	c.dispatcher = functions.NewDispatcher(t, dispOpts)
	return c
}

// Database returns a handle for a given database.
func (c *Client) Database(name string) *Database {
	return newDatabase(c, name)
}

// ServiceName returns the name of the remote mongo service.
func (c *Client) ServiceName() string { return c.service }

// Disconnect waits for in-flight operations to complete or for ctx to end. Operations
// started afterwards fail with ErrClientDisconnected.
func (c *Client) Disconnect(ctx context.Context) error {
	err := c.dispatcher.Close(ctx)
	if errors.Is(err, functions.ErrDispatcherClosed) {
		return ErrClientDisconnected
	}
	return err
}

func (c *Client) dispatch(ctx context.Context, op operation.Operation) *future.Future[bson.RawValue] {
	return c.dispatcher.Dispatch(ctx, operation.Request(c.service, op))
}

// execute dispatches op and decodes the reply with decode. Errors are converted into this
// package's error types.
func execute[T any](ctx context.Context, c *Client, op operation.Operation, decode func(bson.RawValue) (T, error)) *future.Future[T] {
	f := future.Then(c.dispatch(ctx, op), decode)
	return future.Catch(f, func(err error) error {
		err = replaceErrors(err)
		c.logger.WithFields(logrus.Fields{"function": op.Name(), "error": err}).Debug("operation failed")
		return err
	})
}
