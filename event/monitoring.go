// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package event contains the monitoring hooks fired by the function dispatcher.
package event

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// FunctionStartedEvent represents an event generated when a function call is sent to the
// service.
type FunctionStartedEvent struct {
	Arguments    bson.Raw
	ServiceName  string
	FunctionName string
	RequestID    int64
}

// FunctionFinishedEvent represents a generic function call finishing.
type FunctionFinishedEvent struct {
	DurationNanos int64
	ServiceName   string
	FunctionName  string
	RequestID     int64
}

// FunctionSucceededEvent represents an event generated when a function call succeeds.
type FunctionSucceededEvent struct {
	FunctionFinishedEvent
	Reply bson.RawValue
}

// FunctionFailedEvent represents an event generated when a function call fails.
type FunctionFailedEvent struct {
	FunctionFinishedEvent
	Failure string
}

// FunctionMonitor represents a monitor that is triggered for different events.
type FunctionMonitor struct {
	Started   func(context.Context, *FunctionStartedEvent)
	Succeeded func(context.Context, *FunctionSucceededEvent)
	Failed    func(context.Context, *FunctionFailedEvent)
}

// strings for dispatcher monitoring types
const (
	CallQueued       = "FunctionCallQueued"
	CallAdmitted     = "FunctionCallAdmitted"
	CallRejected     = "FunctionCallRejected"
	CallReleased     = "FunctionCallReleased"
	DispatcherClosed = "DispatcherClosed"
)

// DispatcherEvent summarizes a change in the dispatcher's concurrency slots.
type DispatcherEvent struct {
	Type      string `json:"type"`
	RequestID int64  `json:"requestId"`
	InFlight  int64  `json:"inFlight"`
	Reason    string `json:"reason,omitempty"`
}

// DispatcherMonitor gives access to events occurring in the dispatcher.
type DispatcherMonitor struct {
	Event func(*DispatcherEvent)
}
