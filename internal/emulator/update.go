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
	"github.com/ikmak/mongo-functions-go/internal/mathutil"
	"github.com/ikmak/mongo-functions-go/x/functions"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type updateOp struct {
	op    string
	field string
	path  []string
	value document.Val
}

// compiledUpdate is either a replacement document or a list of field modifiers.
type compiledUpdate struct {
	replacement document.Doc
	ops         []updateOp
}

func (u *compiledUpdate) isReplacement() bool { return u.ops == nil }

// compileUpdate validates an update document. A document without $-prefixed keys, including
// the empty document, is a replacement.
func compileUpdate(update document.Doc) (*compiledUpdate, error) {
	var dollar, plain int
	for _, elem := range update {
		if strings.HasPrefix(elem.Key, "$") {
			dollar++
		} else {
			plain++
		}
	}
	switch {
	case dollar == 0:
		return &compiledUpdate{replacement: update.Copy()}, nil
	case plain > 0:
		return nil, invalidUpdate(badValuef("update document cannot mix update operators and replacement fields"))
	}

	u := &compiledUpdate{ops: []updateOp{}}
	for _, elem := range update {
		switch elem.Key {
		case "$set", "$unset", "$inc", "$setOnInsert":
		default:
			return nil, invalidUpdate(failedToParsef("Unknown modifier: %s. Expected a valid update modifier or pipeline-style update specified as an array", elem.Key))
		}
		fields, ok := elem.Value.DocumentOK()
		if !ok {
			return nil, invalidUpdate(failedToParsef("Modifiers operate on fields but we found type %s instead. For example: {$mod: {<field>: ...}} not {%s: %s}",
				elem.Value.Type(), elem.Key, elem.Value))
		}
		for _, f := range fields {
			if f.Key == "" || strings.HasPrefix(f.Key, "$") {
				return nil, invalidUpdate(badValuef("The update path '%s' contains an empty field name or starts with '$', which is not allowed.", f.Key))
			}
			if elem.Key == "$inc" && !f.Value.IsNumber() {
				return nil, &CommandError{
					Code:    14,
					Name:    "TypeMismatch",
					Message: "Cannot increment with non-numeric argument: {" + f.Key + ": " + f.Value.String() + "}",
					Index:   -1,
					Kind:    functions.KindInvalidUpdate,
				}
			}
			u.ops = append(u.ops, updateOp{op: elem.Key, field: f.Key, path: strings.Split(f.Key, "."), value: f.Value})
		}
	}
	return u, nil
}

// apply returns the updated copy of doc. inserting enables $setOnInsert.
func (u *compiledUpdate) apply(doc document.Doc, inserting bool) (document.Doc, error) {
	oldID, hasID := doc.ID()
	if u.isReplacement() {
		out := u.replacement.Copy()
		if !hasID {
			return out, nil
		}
		if newID, ok := out.ID(); ok && !valuesEqual(newID, oldID) {
			return nil, immutableID()
		}
		return out.Delete("_id").Prepend("_id", oldID), nil
	}

	out := doc.Copy()
	for _, op := range u.ops {
		if op.path[0] == "_id" && hasID && op.op != "$setOnInsert" {
			if op.op == "$unset" || len(op.path) > 1 || !valuesEqual(op.value, oldID) {
				return nil, immutableID()
			}
		}
		var err error
		switch op.op {
		case "$set":
			out, err = setPath(out, op.path, op.value)
		case "$setOnInsert":
			if inserting {
				out, err = setPath(out, op.path, op.value)
			}
		case "$unset":
			out = unsetPath(out, op.path)
		case "$inc":
			cur, ok := out.Lookup(op.path...)
			next := op.value
			if ok && !cur.IsZero() {
				if !cur.IsNumber() {
					return nil, &CommandError{
						Code:    14,
						Name:    "TypeMismatch",
						Message: "Cannot apply $inc to a value of non-numeric type. The field '" + op.field + "' is of type " + cur.Type().String(),
						Index:   -1,
					}
				}
				next = addNumbers(cur, op.value)
			}
			out, err = setPath(out, op.path, next)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func addNumbers(a, b document.Val) document.Val {
	a32, aIs32 := a.Int32OK()
	b32, bIs32 := b.Int32OK()
	if aIs32 && bIs32 {
		if sum, ok := mathutil.AddInt32(a32, b32); ok {
			return document.Int32(sum)
		}
		return document.Int64(int64(a32) + int64(b32))
	}
	ai, aInt := integral(a)
	bi, bInt := integral(b)
	if aInt && bInt {
		if sum, ok := mathutil.AddInt64(ai, bi); ok {
			return document.Int64(sum)
		}
	}
	af, _ := a.Float64OK()
	bf, _ := b.Float64OK()
	return document.Double(af + bf)
}

func cannotCreate(field string, parent document.Val) error {
	return &CommandError{
		Code:    28,
		Name:    "PathNotViable",
		Message: "Cannot create field '" + field + "' in element " + parent.String(),
		Index:   -1,
	}
}

// setPath sets the value at path, creating intermediate documents as needed. Numeric
// segments index into arrays, which are padded with nulls when the index is past the end.
func setPath(doc document.Doc, path []string, v document.Val) (document.Doc, error) {
	if len(path) == 1 {
		return doc.Set(path[0], v), nil
	}
	idx := doc.Index(path[0])
	if idx < 0 {
		sub, err := setPath(document.Doc{}, path[1:], v)
		if err != nil {
			return nil, err
		}
		return doc.Append(path[0], document.Document(sub)), nil
	}
	child, err := setIn(doc[idx].Value, path[1:], v)
	if err != nil {
		return nil, err
	}
	doc[idx].Value = child
	return doc, nil
}

func setIn(parent document.Val, rest []string, v document.Val) (document.Val, error) {
	if len(rest) == 0 {
		return v, nil
	}
	if sub, ok := parent.DocumentOK(); ok {
		out, err := setPath(sub, rest, v)
		if err != nil {
			return document.Val{}, err
		}
		return document.Document(out), nil
	}
	if arr, ok := parent.ArrayOK(); ok {
		i, err := strconv.Atoi(rest[0])
		if err != nil || i < 0 {
			return document.Val{}, cannotCreate(rest[0], parent)
		}
		for len(arr) <= i {
			arr = append(arr, document.Null())
		}
		elem, err := setIn(arr[i], rest[1:], v)
		if err != nil {
			return document.Val{}, err
		}
		arr[i] = elem
		return document.Array(arr), nil
	}
	if parent.IsNull() {
		sub, err := setPath(document.Doc{}, rest, v)
		if err != nil {
			return document.Val{}, err
		}
		return document.Document(sub), nil
	}
	return document.Val{}, cannotCreate(rest[0], parent)
}

// unsetPath removes the value at path. Array elements are set to null instead of removed.
func unsetPath(doc document.Doc, path []string) document.Doc {
	if len(path) == 1 {
		return doc.Delete(path[0])
	}
	idx := doc.Index(path[0])
	if idx < 0 {
		return doc
	}
	doc[idx].Value = unsetIn(doc[idx].Value, path[1:])
	return doc
}

func unsetIn(parent document.Val, rest []string) document.Val {
	if sub, ok := parent.DocumentOK(); ok {
		return document.Document(unsetPath(sub, rest))
	}
	arr, ok := parent.ArrayOK()
	if !ok {
		return parent
	}
	i, err := strconv.Atoi(rest[0])
	if err != nil || i < 0 || i >= len(arr) {
		return parent
	}
	if len(rest) == 1 {
		arr[i] = document.Null()
	} else {
		arr[i] = unsetIn(arr[i], rest[1:])
	}
	return document.Array(arr)
}

// upsertSeed collects the equality conditions of filter into the document an upsert starts
// from.
func upsertSeed(filter document.Doc) document.Doc {
	seed := document.Doc{}
	var collect func(f document.Doc)
	collect = func(f document.Doc) {
		for _, elem := range f {
			if elem.Key == "$and" {
				arr, _ := elem.Value.ArrayOK()
				for _, sub := range arr {
					if d, ok := sub.DocumentOK(); ok {
						collect(d)
					}
				}
				continue
			}
			if strings.HasPrefix(elem.Key, "$") {
				continue
			}
			val := elem.Value
			if ops, ok := isOperatorDoc(val); ok {
				eq, found := ops.Lookup("$eq")
				if !found {
					continue
				}
				val = eq
			}
			if next, err := setPath(seed, strings.Split(elem.Key, "."), val.Copy()); err == nil {
				seed = next
			}
		}
	}
	collect(filter)
	return seed
}

// newUpsert builds the document inserted by an upsert that matched nothing.
func newUpsert(filter document.Doc, u *compiledUpdate) (document.Doc, error) {
	seed := upsertSeed(filter)
	var (
		doc document.Doc
		err error
	)
	if u.isReplacement() {
		doc = u.replacement.Copy()
		if id, ok := seed.ID(); ok {
			if rid, has := doc.ID(); has && !valuesEqual(rid, id) {
				return nil, immutableID()
			}
			doc = doc.Delete("_id").Prepend("_id", id)
		}
	} else if doc, err = u.apply(seed, true); err != nil {
		return nil, err
	}
	return ensureID(doc), nil
}

// ensureID moves _id to the front of doc, generating an ObjectID when it is missing.
func ensureID(doc document.Doc) document.Doc {
	id, ok := doc.ID()
	if !ok {
		return doc.Prepend("_id", document.ObjectID(primitive.NewObjectID()))
	}
	if doc[0].Key == "_id" {
		return doc
	}
	return doc.Delete("_id").Prepend("_id", id)
}
