// Copyright (C) MongoDB, Inc. 2025-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package mathutil holds overflow-checked integer helpers.
package mathutil

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrOverflow    = errors.New("numeric overflow")
	ErrUnsupported = errors.New("unsupported numeric type")
)

func overflowError(from any, to any) error {
	return fmt.Errorf("%w: %v (%T) to %v (%T)", ErrOverflow, from, from, to, to)
}

func unsupportedError(from any, to any) error {
	return fmt.Errorf("%w: %v (%T) to %v (%T)", ErrUnsupported, from, from, to, to)
}

type Integer interface {
	~int | ~int32 | ~int64
}

func i64ToT[T Integer](i64 int64) (T, error) {
	var zero T

	switch any(zero).(type) {
	case int:
		if i64 > int64(math.MaxInt) || i64 < int64(math.MinInt) {
			return zero, overflowError(i64, zero)
		}
	case int32:
		if i64 > int64(math.MaxInt32) || i64 < int64(math.MinInt32) {
			return zero, overflowError(i64, zero)
		}
	case int64:
	default:
		return zero, unsupportedError(i64, zero)
	}

	return T(i64), nil
}

func f64ToT[T Integer](f64 float64) (T, error) {
	var zero T
	if math.IsNaN(f64) || f64 != math.Trunc(f64) {
		return zero, unsupportedError(f64, zero)
	}
	if f64 >= math.MaxInt64 || f64 < math.MinInt64 {
		return zero, overflowError(f64, zero)
	}
	return i64ToT[T](int64(f64))
}

// SafeConvertNumeric converts an int, int32, int64 or integral float64 into T, failing when
// the value does not fit.
func SafeConvertNumeric[T Integer](number any) (T, error) {
	switch v := number.(type) {
	case int:
		return i64ToT[T](int64(v))
	case int32:
		return i64ToT[T](int64(v))
	case int64:
		return i64ToT[T](v)
	case float64:
		return f64ToT[T](v)
	}

	return *new(T), unsupportedError(number, *new(T))
}

// AddInt32 returns a+b and whether the sum fits in an int32.
func AddInt32(a, b int32) (int32, bool) {
	sum := int64(a) + int64(b)
	if sum > math.MaxInt32 || sum < math.MinInt32 {
		return 0, false
	}
	return int32(sum), true
}

// AddInt64 returns a+b and whether the sum fits in an int64.
func AddInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}
