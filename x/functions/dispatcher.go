// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package functions

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ikmak/mongo-functions-go/event"
	"github.com/ikmak/mongo-functions-go/future"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/semaphore"
)

// ErrDispatcherClosed is returned for calls dispatched after Close.
var ErrDispatcherClosed = errors.New("dispatcher is closed")

// Defaults used when DispatcherOptions leaves a field unset.
const (
	DefaultMaxConcurrentCalls = 16
	DefaultCallTimeout        = 60 * time.Second
)

var globalRequestID int64

// NextRequestID returns a process-wide unique call id.
func NextRequestID() int64 { return atomic.AddInt64(&globalRequestID, 1) }

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	MaxConcurrentCalls int64
	// CallTimeout bounds each round trip. A negative value disables the timeout.
	CallTimeout time.Duration
	Monitor     *event.FunctionMonitor
	PoolMonitor *event.DispatcherMonitor
	Logger      logrus.FieldLogger
}

// Dispatcher runs function calls on its own goroutines. At most MaxConcurrentCalls round
// trips are in flight at once; further calls wait for a slot.
type Dispatcher struct {
	transport   Transport
	sem         *semaphore.Weighted
	timeout     time.Duration
	monitor     *event.FunctionMonitor
	poolMonitor *event.DispatcherMonitor
	logger      logrus.FieldLogger

	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	inFlight int64
}

// NewDispatcher creates a Dispatcher around t.
func NewDispatcher(t Transport, opts DispatcherOptions) *Dispatcher {
	if opts.MaxConcurrentCalls <= 0 {
		opts.MaxConcurrentCalls = DefaultMaxConcurrentCalls
	}
	if opts.CallTimeout == 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	return &Dispatcher{
		transport:   t,
		sem:         semaphore.NewWeighted(opts.MaxConcurrentCalls),
		timeout:     opts.CallTimeout,
		monitor:     opts.Monitor,
		poolMonitor: opts.PoolMonitor,
		logger:      opts.Logger,
	}
}

// Dispatch sends req and returns immediately. The returned future is completed with the reply
// or the failure once the round trip ends. ctx bounds the wait for a slot and the round trip.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *future.Future[bson.RawValue] {
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return future.Rejected[bson.RawValue](ErrDispatcherClosed)
	}
	d.wg.Add(1)
	d.mu.RUnlock()

	f := future.New[bson.RawValue]()
	requestID := NextRequestID()
	d.publish(event.CallQueued, requestID, "")
	go func() {
		defer d.wg.Done()
		_ = f.Complete(d.call(ctx, requestID, req))
	}()
	return f
}

func (d *Dispatcher) call(ctx context.Context, requestID int64, req *Request) (bson.RawValue, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.publish(event.CallRejected, requestID, err.Error())
		return bson.RawValue{}, &TransportError{Op: "dispatch", Err: err}
	}
	atomic.AddInt64(&d.inFlight, 1)
	d.publish(event.CallAdmitted, requestID, "")
	defer func() {
		atomic.AddInt64(&d.inFlight, -1)
		d.sem.Release(1)
		d.publish(event.CallReleased, requestID, "")
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	log := d.logger.WithFields(logrus.Fields{
		"service":    req.Service,
		"function":   req.Name,
		"request_id": requestID,
	})
	d.started(ctx, requestID, req)
	start := time.Now()

	reply, err := d.transport.RoundTrip(ctx, req)
	duration := time.Since(start)
	finished := event.FunctionFinishedEvent{
		DurationNanos: duration.Nanoseconds(),
		ServiceName:   req.Service,
		FunctionName:  req.Name,
		RequestID:     requestID,
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !isTyped(err) {
			err = &TransportError{Op: "call", Err: ctxErr}
		}
		log.WithFields(logrus.Fields{"duration": duration, "error": err}).Debug("function call failed")
		if d.monitor != nil && d.monitor.Failed != nil {
			d.monitor.Failed(ctx, &event.FunctionFailedEvent{FunctionFinishedEvent: finished, Failure: err.Error()})
		}
		return bson.RawValue{}, err
	}

	log.WithField("duration", duration).Debug("function call succeeded")
	if d.monitor != nil && d.monitor.Succeeded != nil {
		d.monitor.Succeeded(ctx, &event.FunctionSucceededEvent{FunctionFinishedEvent: finished, Reply: reply})
	}
	return reply, nil
}

func isTyped(err error) bool {
	var te *TransportError
	var se *ServiceError
	return errors.As(err, &te) || errors.As(err, &se)
}

func (d *Dispatcher) started(ctx context.Context, requestID int64, req *Request) {
	if d.monitor == nil || d.monitor.Started == nil {
		return
	}
	args, err := bson.Marshal(bson.D{{Key: "arguments", Value: req.Arguments}})
	if err != nil {
		d.logger.WithError(err).Warn("cannot render function arguments for monitoring")
	}
	d.monitor.Started(ctx, &event.FunctionStartedEvent{
		Arguments:    args,
		ServiceName:  req.Service,
		FunctionName: req.Name,
		RequestID:    requestID,
	})
}

func (d *Dispatcher) publish(typ string, requestID int64, reason string) {
	if d.poolMonitor == nil || d.poolMonitor.Event == nil {
		return
	}
	d.poolMonitor.Event(&event.DispatcherEvent{
		Type:      typ,
		RequestID: requestID,
		InFlight:  atomic.LoadInt64(&d.inFlight),
		Reason:    reason,
	})
}

// InFlight returns the number of round trips currently running.
func (d *Dispatcher) InFlight() int64 { return atomic.LoadInt64(&d.inFlight) }

// Close stops accepting calls and waits for dispatched calls to complete or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	alreadyClosed := d.closed
	d.closed = true
	d.mu.Unlock()
	if alreadyClosed {
		return ErrDispatcherClosed
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-done:
		d.publish(event.DispatcherClosed, 0, "")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
