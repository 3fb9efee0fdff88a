// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package future provides a single-assignment asynchronous result.
//
// A Future starts pending and is completed exactly once, either with a value or with an
// error. Completion may happen on any goroutine. Callers can block on Get, select on Done, or
// register a continuation with OnComplete; every accessor observes the same terminal state no
// matter how many times it is called.
//
//	f := coll.Count(ctx, nil)
//	n, err := f.Get(ctx)
package future

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyCompleted is returned when a completed Future is resolved or rejected again.
var ErrAlreadyCompleted = errors.New("future already completed")

// Future is a single-assignment container for a value of type T or an error.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	val       T
	err       error
	callbacks []func(T, error)
}

// New creates a pending Future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved creates a Future already fulfilled with val.
func Resolved[T any](val T) *Future[T] {
	f := New[T]()
	_ = f.Resolve(val)
	return f
}

// Rejected creates a Future already rejected with err.
func Rejected[T any](err error) *Future[T] {
	f := New[T]()
	_ = f.Reject(err)
	return f
}

// Resolve fulfills the Future with val.
func (f *Future[T]) Resolve(val T) error { return f.complete(val, nil) }

// Reject completes the Future with err. A nil err is replaced by a generic error so that a
// rejected Future always reports a failure.
func (f *Future[T]) Reject(err error) error {
	if err == nil {
		err = errors.New("future rejected with nil error")
	}
	var zero T
	return f.complete(zero, err)
}

// Complete fulfills the Future with val when err is nil and rejects it otherwise.
func (f *Future[T]) Complete(val T, err error) error {
	if err != nil {
		var zero T
		return f.complete(zero, err)
	}
	return f.complete(val, nil)
}

func (f *Future[T]) complete(val T, err error) error {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return ErrAlreadyCompleted
	}
	f.completed = true
	f.val, f.err = val, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(val, err)
	}
	return nil
}

// Done returns a channel that is closed once the Future is complete.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Poll returns the outcome without blocking. The boolean reports whether the Future is
// complete; the value and error are zero while it is pending.
func (f *Future[T]) Poll() (T, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, f.completed, f.err
}

// Get blocks until the Future is complete or ctx is done. When ctx ends first, ctx.Err() is
// returned and the Future itself is left untouched.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-f.done:
	case <-ctx.Done():
		select {
		case <-f.done:
		default:
			var zero T
			return zero, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, f.err
}

// Wait blocks until the Future is complete and returns its outcome.
func (f *Future[T]) Wait() (T, error) { return f.Get(context.Background()) }

// OnComplete registers cb to run once with the outcome. If the Future is already complete cb
// runs immediately on the calling goroutine; otherwise it runs on the goroutine that
// completes the Future.
func (f *Future[T]) OnComplete(cb func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	val, err := f.val, f.err
	f.mu.Unlock()
	cb(val, err)
}

// Then returns a Future completed with fn applied to the value of f. If f is rejected, the
// returned Future is rejected with the same error and fn is not called.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := New[U]()
	f.OnComplete(func(val T, err error) {
		if err != nil {
			_ = out.Reject(err)
			return
		}
		_ = out.Complete(fn(val))
	})
	return out
}

// Catch returns a Future that passes values of f through and replaces its errors with
// fn(err). fn may return nil to keep the original error.
func Catch[T any](f *Future[T], fn func(error) error) *Future[T] {
	out := New[T]()
	f.OnComplete(func(val T, err error) {
		if err != nil {
			if mapped := fn(err); mapped != nil {
				err = mapped
			}
			_ = out.Reject(err)
			return
		}
		_ = out.Resolve(val)
	})
	return out
}

// Go runs fn on a new goroutine and completes the returned Future with its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := New[T]()
	go func() {
		_ = f.Complete(fn())
	}()
	return f
}
