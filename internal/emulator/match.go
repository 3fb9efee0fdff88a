// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package emulator

import (
	"strconv"
	"strings"

	"github.com/ikmak/mongo-functions-go/document"
)

// matcher reports whether a document satisfies a compiled filter.
type matcher func(document.Doc) bool

func matchAll(document.Doc) bool { return true }

// compileFilter validates filter and turns it into a matcher. A nil or empty filter matches
// every document.
func compileFilter(filter document.Doc) (matcher, error) {
	if len(filter) == 0 {
		return matchAll, nil
	}
	preds := make([]matcher, 0, len(filter))
	for _, elem := range filter {
		var (
			m   matcher
			err error
		)
		if strings.HasPrefix(elem.Key, "$") {
			m, err = compileLogical(elem.Key, elem.Value)
		} else {
			m, err = compileField(strings.Split(elem.Key, "."), elem.Value)
		}
		if err != nil {
			return nil, err
		}
		preds = append(preds, m)
	}
	return func(doc document.Doc) bool {
		for _, p := range preds {
			if !p(doc) {
				return false
			}
		}
		return true
	}, nil
}

func compileLogical(op string, v document.Val) (matcher, error) {
	switch op {
	case "$and", "$or", "$nor":
	default:
		return nil, invalidFilterf("unknown top level operator: %s", op)
	}
	arr, ok := v.ArrayOK()
	if !ok || len(arr) == 0 {
		return nil, invalidFilterf("%s must be a nonempty array", op)
	}
	subs := make([]matcher, 0, len(arr))
	for _, elem := range arr {
		sub, ok := elem.DocumentOK()
		if !ok {
			return nil, invalidFilterf("$or/$and/$nor entries need to be full objects")
		}
		m, err := compileFilter(sub)
		if err != nil {
			return nil, err
		}
		subs = append(subs, m)
	}
	switch op {
	case "$and":
		return func(doc document.Doc) bool {
			for _, m := range subs {
				if !m(doc) {
					return false
				}
			}
			return true
		}, nil
	case "$or":
		return func(doc document.Doc) bool {
			for _, m := range subs {
				if m(doc) {
					return true
				}
			}
			return false
		}, nil
	}
	return func(doc document.Doc) bool {
		for _, m := range subs {
			if m(doc) {
				return false
			}
		}
		return true
	}, nil
}

func isOperatorDoc(v document.Val) (document.Doc, bool) {
	d, ok := v.DocumentOK()
	if !ok || len(d) == 0 || !strings.HasPrefix(d[0].Key, "$") {
		return nil, false
	}
	return d, true
}

func compileField(path []string, cond document.Val) (matcher, error) {
	ops, ok := isOperatorDoc(cond)
	if !ok {
		return func(doc document.Doc) bool { return matchEq(pathValues(doc, path), cond) }, nil
	}

	preds := make([]func([]document.Val) bool, 0, len(ops))
	for _, op := range ops {
		p, err := compileOperator(op.Key, op.Value)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return func(doc document.Doc) bool {
		vals := pathValues(doc, path)
		for _, p := range preds {
			if !p(vals) {
				return false
			}
		}
		return true
	}, nil
}

func compileOperator(op string, operand document.Val) (func([]document.Val) bool, error) {
	switch op {
	case "$eq":
		return func(vals []document.Val) bool { return matchEq(vals, operand) }, nil
	case "$ne":
		return func(vals []document.Val) bool { return !matchEq(vals, operand) }, nil
	case "$gt", "$gte", "$lt", "$lte":
		return func(vals []document.Val) bool { return matchCmp(vals, op, operand) }, nil
	case "$in", "$nin":
		arr, ok := operand.ArrayOK()
		if !ok {
			return nil, invalidFilterf("%s needs an array", op)
		}
		in := func(vals []document.Val) bool {
			for _, want := range arr {
				if matchEq(vals, want) {
					return true
				}
			}
			return false
		}
		if op == "$nin" {
			return func(vals []document.Val) bool { return !in(vals) }, nil
		}
		return in, nil
	case "$exists":
		want := truthy(operand)
		return func(vals []document.Val) bool { return (len(vals) > 0) == want }, nil
	}
	return nil, invalidFilterf("unknown operator: %s", op)
}

func truthy(v document.Val) bool {
	if b, ok := v.BooleanOK(); ok {
		return b
	}
	if f, ok := v.Float64OK(); ok {
		return f != 0
	}
	return !v.IsNull()
}

// matchEq implements equality against the values found at a path. Arrays match when they
// equal want or hold an element equal to it; a missing field equals null.
func matchEq(vals []document.Val, want document.Val) bool {
	if len(vals) == 0 {
		return want.IsNull()
	}
	for _, v := range vals {
		if valuesEqual(v, want) {
			return true
		}
		if arr, ok := v.ArrayOK(); ok {
			for _, elem := range arr {
				if valuesEqual(elem, want) {
					return true
				}
			}
		}
	}
	return false
}

func matchCmp(vals []document.Val, op string, operand document.Val) bool {
	test := func(v document.Val) bool {
		if typeRank(v.Type()) != typeRank(operand.Type()) {
			return false
		}
		c := compareValues(v, operand)
		switch op {
		case "$gt":
			return c > 0
		case "$gte":
			return c >= 0
		case "$lt":
			return c < 0
		}
		return c <= 0
	}
	for _, v := range vals {
		if test(v) {
			return true
		}
		if arr, ok := v.ArrayOK(); ok {
			for _, elem := range arr {
				if test(elem) {
					return true
				}
			}
		}
	}
	return false
}

// pathValues returns every value reachable through path. Arrays in the middle of a path are
// traversed element by element unless the next segment is an index.
func pathValues(doc document.Doc, path []string) []document.Val {
	idx := doc.Index(path[0])
	if idx < 0 {
		return nil
	}
	return valuePath(doc[idx].Value, path[1:])
}

func valuePath(v document.Val, rest []string) []document.Val {
	if len(rest) == 0 {
		return []document.Val{v}
	}
	if sub, ok := v.DocumentOK(); ok {
		return pathValues(sub, rest)
	}
	arr, ok := v.ArrayOK()
	if !ok {
		return nil
	}
	var out []document.Val
	if i, err := strconv.Atoi(rest[0]); err == nil && i >= 0 && i < len(arr) {
		out = append(out, valuePath(arr[i], rest[1:])...)
	}
	for _, elem := range arr {
		if sub, ok := elem.DocumentOK(); ok {
			out = append(out, pathValues(sub, rest)...)
		}
	}
	return out
}
