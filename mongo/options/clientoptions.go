// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package options

import (
	"time"

	"github.com/ikmak/mongo-functions-go/event"
	"github.com/sirupsen/logrus"
)

// DefaultServiceName is the name of the remote mongo service when none is configured.
const DefaultServiceName = "mongodb-atlas"

// ClientOptions contains options to configure a Client instance. Each option can be set
// through setter functions.
type ClientOptions struct {
	ServiceName        *string
	MaxConcurrentCalls *int64
	CallTimeout        *time.Duration
	Logger             logrus.FieldLogger
	Monitor            *event.FunctionMonitor
	DispatcherMonitor  *event.DispatcherMonitor
}

// Client creates a new ClientOptions instance.
func Client() *ClientOptions {
	return &ClientOptions{}
}

// SetServiceName specifies the name of the remote mongo service. The default is
// "mongodb-atlas".
func (c *ClientOptions) SetServiceName(name string) *ClientOptions {
	c.ServiceName = &name
	return c
}

// SetMaxConcurrentCalls specifies how many function calls may be in flight at once. The
// default is 16.
func (c *ClientOptions) SetMaxConcurrentCalls(n int64) *ClientOptions {
	c.MaxConcurrentCalls = &n
	return c
}

// SetCallTimeout specifies the timeout of every function call. The default is 60 seconds; a
// negative value disables the timeout.
func (c *ClientOptions) SetCallTimeout(d time.Duration) *ClientOptions {
	c.CallTimeout = &d
	return c
}

// SetLogger specifies the logger the client writes debug output to. By default nothing is
// logged.
func (c *ClientOptions) SetLogger(l logrus.FieldLogger) *ClientOptions {
	c.Logger = l
	return c
}

// SetMonitor specifies a FunctionMonitor to receive function call events.
func (c *ClientOptions) SetMonitor(m *event.FunctionMonitor) *ClientOptions {
	c.Monitor = m
	return c
}

// SetDispatcherMonitor specifies a DispatcherMonitor to receive concurrency slot events.
func (c *ClientOptions) SetDispatcherMonitor(m *event.DispatcherMonitor) *ClientOptions {
	c.DispatcherMonitor = m
	return c
}

// MergeClientOptions combines the given ClientOptions instances into a single ClientOptions
// in a last-one-wins fashion.
func MergeClientOptions(opts ...*ClientOptions) *ClientOptions {
	c := Client()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if opt.ServiceName != nil {
			c.ServiceName = opt.ServiceName
		}
		if opt.MaxConcurrentCalls != nil {
			c.MaxConcurrentCalls = opt.MaxConcurrentCalls
		}
		if opt.CallTimeout != nil {
			c.CallTimeout = opt.CallTimeout
		}
		if opt.Logger != nil {
			c.Logger = opt.Logger
		}
		if opt.Monitor != nil {
			c.Monitor = opt.Monitor
		}
		if opt.DispatcherMonitor != nil {
			c.DispatcherMonitor = opt.DispatcherMonitor
		}
	}

	return c
}
