// Copyright (C) MongoDB, Inc. 2025-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mathutil

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeConvertNumeric(t *testing.T) {
	t.Parallel()

	n, err := SafeConvertNumeric[int32](int64(5))
	assert.NoError(t, err)
	assert.Equal(t, int32(5), n)

	_, err = SafeConvertNumeric[int32](int64(math.MaxInt32) + 1)
	assert.True(t, errors.Is(err, ErrOverflow))

	i, err := SafeConvertNumeric[int64](3.0)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), i)

	_, err = SafeConvertNumeric[int64](3.5)
	assert.True(t, errors.Is(err, ErrUnsupported))

	_, err = SafeConvertNumeric[int]("3")
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestAdd(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		a, b int32
		sum  int32
		ok   bool
	}{
		{"small", 1, 2, 3, true},
		{"negative", -5, 2, -3, true},
		{"overflow", math.MaxInt32, 1, 0, false},
		{"underflow", math.MinInt32, -1, 0, false},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sum, ok := AddInt32(tc.a, tc.b)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.sum, sum)
		})
	}

	_, ok := AddInt64(math.MaxInt64, 1)
	assert.False(t, ok)
	_, ok = AddInt64(math.MinInt64, -1)
	assert.False(t, ok)
	sum, ok := AddInt64(1<<40, 1)
	assert.True(t, ok)
	assert.Equal(t, int64(1<<40+1), sum)
}
