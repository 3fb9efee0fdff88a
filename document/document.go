// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package document

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNilDocument indicates that an operation was attempted on a nil *Doc.
var ErrNilDocument = errors.New("document is nil")

// Elem is a key/value pair of a Doc.
type Elem struct {
	Key   string
	Value Val
}

// Equal compares e and e2 and returns true if they are equal.
func (e Elem) Equal(e2 Elem) bool {
	return e.Key == e2.Key && e.Value.Equal(e2.Value)
}

func (e Elem) String() string {
	return fmt.Sprintf(`%q: %s`, e.Key, e.Value)
}

// Doc is an ordered document. Keys are unique when the document is built with Set; Append
// does not check for an existing key.
//
// A Doc is used as a value: methods that modify it return the updated Doc.
type Doc []Elem

// New creates a Doc from the provided elements, applying Set for each of them.
func New(elems ...Elem) Doc {
	d := make(Doc, 0, len(elems))
	for _, elem := range elems {
		d = d.Set(elem.Key, elem.Value)
	}
	return d
}

// ReadDoc creates a Doc from BSON bytes.
func ReadDoc(b []byte) (Doc, error) {
	var d Doc
	if err := d.UnmarshalBSON(b); err != nil {
		return nil, err
	}
	return d, nil
}

// FromD converts a bson.D into a Doc.
func FromD(d bson.D) (Doc, error) {
	out := make(Doc, 0, len(d))
	for _, e := range d {
		v, err := FromInterface(e.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot convert value of key %q", e.Key)
		}
		out = append(out, Elem{Key: e.Key, Value: v})
	}
	return out, nil
}

// Marshal converts any value the bson package can marshal as a document into a Doc. nil
// becomes an empty document.
func Marshal(v interface{}) (Doc, error) {
	switch tt := v.(type) {
	case nil:
		return Doc{}, nil
	case Doc:
		return tt.Copy(), nil
	case *Doc:
		if tt == nil {
			return nil, ErrNilDocument
		}
		return tt.Copy(), nil
	case bson.D:
		return FromD(tt)
	case bson.Raw:
		return ReadDoc(tt)
	case []byte:
		return ReadDoc(tt)
	}
	b, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	return ReadDoc(b)
}

// Len returns the number of elements in the document.
func (d Doc) Len() int { return len(d) }

// Keys returns the top-level keys in order.
func (d Doc) Keys() []string {
	keys := make([]string, 0, len(d))
	for _, elem := range d {
		keys = append(keys, elem.Key)
	}
	return keys
}

// Append adds an element to the end of the document.
func (d Doc) Append(key string, val Val) Doc {
	return append(d, Elem{Key: key, Value: val})
}

// Prepend adds an element to the beginning of the document.
func (d Doc) Prepend(key string, val Val) Doc {
	out := make(Doc, 0, len(d)+1)
	out = append(out, Elem{Key: key, Value: val})
	return append(out, d...)
}

// Set replaces the value of key in place, or appends it when the key is not present.
func (d Doc) Set(key string, val Val) Doc {
	for i := range d {
		if d[i].Key == key {
			d[i].Value = val
			return d
		}
	}
	return d.Append(key, val)
}

// Delete removes key from the document. Deleting a missing key is a no-op.
func (d Doc) Delete(key string) Doc {
	for i := range d {
		if d[i].Key == key {
			return append(d[:i:i], d[i+1:]...)
		}
	}
	return d
}

// Index returns the position of key, or -1.
func (d Doc) Index(key string) int {
	for i := range d {
		if d[i].Key == key {
			return i
		}
	}
	return -1
}

// Lookup searches the document and embedded documents for the provided key. Each key is one
// level of depth; a single dotted key is split on '.'. Array elements are addressed by
// their decimal index.
func (d Doc) Lookup(key ...string) (Val, bool) {
	if len(key) == 1 && strings.Contains(key[0], ".") {
		key = strings.Split(key[0], ".")
	}
	if len(key) == 0 {
		return Val{}, false
	}
	idx := d.Index(key[0])
	if idx < 0 {
		return Val{}, false
	}
	return lookupVal(d[idx].Value, key[1:])
}

func lookupVal(v Val, rest []string) (Val, bool) {
	if len(rest) == 0 {
		return v, true
	}
	if sub, ok := v.DocumentOK(); ok {
		return sub.Lookup(rest...)
	}
	if arr, ok := v.ArrayOK(); ok {
		var i int
		if _, err := fmt.Sscanf(rest[0], "%d", &i); err != nil || i < 0 || i >= len(arr) {
			return Val{}, false
		}
		return lookupVal(arr[i], rest[1:])
	}
	return Val{}, false
}

// ID returns the value of the _id field.
func (d Doc) ID() (Val, bool) {
	idx := d.Index("_id")
	if idx < 0 {
		return Val{}, false
	}
	return d[idx].Value, true
}

// Copy returns a deep copy of d.
func (d Doc) Copy() Doc {
	if d == nil {
		return nil
	}
	out := make(Doc, len(d))
	for i, elem := range d {
		out[i] = Elem{Key: elem.Key, Value: elem.Value.Copy()}
	}
	return out
}

// Equal compares d and d2. Two documents are equal when they hold the same keys with equal
// values; key order is ignored.
func (d Doc) Equal(d2 Doc) bool {
	if len(d) != len(d2) {
		return false
	}
	for _, elem := range d {
		idx := d2.Index(elem.Key)
		if idx < 0 || !elem.Value.Equal(d2[idx].Value) {
			return false
		}
	}
	return true
}

// D converts the document into a bson.D, recursively.
func (d Doc) D() bson.D {
	out := make(bson.D, 0, len(d))
	for _, elem := range d {
		out = append(out, primitive.E{Key: elem.Key, Value: elem.Value.Interface()})
	}
	return out
}

// Decode unmarshals the document into val using the bson package.
func (d Doc) Decode(val interface{}) error {
	b, err := d.MarshalBSON()
	if err != nil {
		return err
	}
	return bson.Unmarshal(b, val)
}

// MarshalBSON implements the bson.Marshaler interface.
func (d Doc) MarshalBSON() ([]byte, error) {
	return bson.Marshal(d.D())
}

// UnmarshalBSON implements the bson.Unmarshaler interface.
func (d *Doc) UnmarshalBSON(b []byte) error {
	if d == nil {
		return ErrNilDocument
	}
	var raw bson.D
	if err := bson.Unmarshal(b, &raw); err != nil {
		return err
	}
	out, err := FromD(raw)
	if err != nil {
		return err
	}
	*d = out
	return nil
}

// String renders the document as relaxed extended JSON.
func (d Doc) String() string {
	b, err := bson.MarshalExtJSON(d, false, false)
	if err != nil {
		return fmt.Sprintf("document{<invalid: %v>}", err)
	}
	return string(b)
}
