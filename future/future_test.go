// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package future

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture(t *testing.T) {
	t.Parallel()

	t.Run("resolve once", func(t *testing.T) {
		t.Parallel()
		f := New[int]()
		_, done, _ := f.Poll()
		assert.False(t, done)

		require.NoError(t, f.Resolve(42))
		assert.Equal(t, ErrAlreadyCompleted, f.Resolve(7))
		assert.Equal(t, ErrAlreadyCompleted, f.Reject(errors.New("late")))

		for i := 0; i < 3; i++ {
			v, err := f.Get(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 42, v)
		}
		v, done, err := f.Poll()
		assert.True(t, done)
		assert.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("reject", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		f := Rejected[string](boom)
		v, err := f.Wait()
		assert.Equal(t, boom, err)
		assert.Equal(t, "", v)
		assert.Equal(t, ErrAlreadyCompleted, f.Resolve("x"))
	})

	t.Run("reject with nil error still fails", func(t *testing.T) {
		t.Parallel()
		f := New[int]()
		require.NoError(t, f.Reject(nil))
		_, err := f.Wait()
		assert.Error(t, err)
	})

	t.Run("get honors context without completing", func(t *testing.T) {
		t.Parallel()
		f := New[int]()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := f.Get(ctx)
		assert.Equal(t, context.DeadlineExceeded, err)

		require.NoError(t, f.Resolve(1))
		v, err := f.Wait()
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})

	t.Run("get on completed future ignores a done context", func(t *testing.T) {
		t.Parallel()
		f := Resolved(5)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		v, err := f.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, v)
	})

	t.Run("continuations run exactly once", func(t *testing.T) {
		t.Parallel()
		f := New[int]()
		var calls int32
		var wg sync.WaitGroup
		wg.Add(2)
		cb := func(v int, err error) {
			atomic.AddInt32(&calls, 1)
			assert.Equal(t, 3, v)
			assert.NoError(t, err)
			wg.Done()
		}
		f.OnComplete(cb)
		go func() { _ = f.Resolve(3) }()
		<-f.Done()
		f.OnComplete(cb)
		wg.Wait()
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("concurrent completion has a single winner", func(t *testing.T) {
		t.Parallel()
		f := New[int]()
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if f.Resolve(i) == nil {
					atomic.AddInt32(&wins, 1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	})
}

func TestThen(t *testing.T) {
	t.Parallel()

	t.Run("maps values", func(t *testing.T) {
		t.Parallel()
		f := New[int]()
		g := Then(f, func(v int) (string, error) { return strconv.Itoa(v * 2), nil })
		require.NoError(t, f.Resolve(21))
		v, err := g.Wait()
		require.NoError(t, err)
		assert.Equal(t, "42", v)
	})

	t.Run("propagates errors without calling fn", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		called := false
		g := Then(Rejected[int](boom), func(v int) (int, error) {
			called = true
			return v, nil
		})
		_, err := g.Wait()
		assert.Equal(t, boom, err)
		assert.False(t, called)
	})

	t.Run("fn errors reject", func(t *testing.T) {
		t.Parallel()
		bad := errors.New("bad")
		g := Then(Resolved(1), func(int) (int, error) { return 0, bad })
		_, err := g.Wait()
		assert.Equal(t, bad, err)
	})
}

func TestCatch(t *testing.T) {
	t.Parallel()
	mapped := errors.New("mapped")
	g := Catch(Rejected[int](errors.New("raw")), func(error) error { return mapped })
	_, err := g.Wait()
	assert.Equal(t, mapped, err)

	keep := errors.New("keep")
	g = Catch(Rejected[int](keep), func(error) error { return nil })
	_, err = g.Wait()
	assert.Equal(t, keep, err)

	v, err := Catch(Resolved(9), func(error) error { return mapped }).Wait()
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}

func TestGo(t *testing.T) {
	t.Parallel()
	f := Go(func() (int, error) { return 11, nil })
	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 11, v)
}
