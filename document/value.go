// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package document

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Val represents a single BSON value. The zero Val is empty and is encoded as BSON null.
//
// The type tag decides what the primitive holds: bool, int32, int64, float64, string,
// primitive.Binary, primitive.ObjectID, primitive.Timestamp, primitive.DateTime, Doc or Arr.
// Any other BSON type received from the wire is kept as the value the bson package decoded it
// into.
type Val struct {
	t         bsontype.Type
	primitive interface{}
}

// Arr is an ordered list of values.
type Arr []Val

// Null constructs a BSON null Val.
func Null() Val { return Val{t: bsontype.Null} }

// Boolean constructs a BSON boolean Val.
func Boolean(b bool) Val { return Val{t: bsontype.Boolean, primitive: b} }

// Int32 constructs a BSON int32 Val.
func Int32(i32 int32) Val { return Val{t: bsontype.Int32, primitive: i32} }

// Int64 constructs a BSON int64 Val.
func Int64(i64 int64) Val { return Val{t: bsontype.Int64, primitive: i64} }

// Double constructs a BSON double Val.
func Double(f64 float64) Val { return Val{t: bsontype.Double, primitive: f64} }

// String constructs a BSON string Val.
func String(str string) Val { return Val{t: bsontype.String, primitive: str} }

// Binary constructs a BSON binary Val.
func Binary(subtype byte, data []byte) Val {
	return Val{t: bsontype.Binary, primitive: primitive.Binary{Subtype: subtype, Data: data}}
}

// ObjectID constructs a BSON ObjectID Val.
func ObjectID(oid primitive.ObjectID) Val { return Val{t: bsontype.ObjectID, primitive: oid} }

// Timestamp constructs a BSON timestamp Val.
func Timestamp(t, i uint32) Val {
	return Val{t: bsontype.Timestamp, primitive: primitive.Timestamp{T: t, I: i}}
}

// DateTime constructs a BSON datetime Val from milliseconds since the Unix epoch.
func DateTime(dt int64) Val { return Val{t: bsontype.DateTime, primitive: primitive.DateTime(dt)} }

// Time constructs a BSON datetime Val from a time.Time.
func Time(t time.Time) Val { return DateTime(int64(primitive.NewDateTimeFromTime(t))) }

// Document constructs a BSON embedded document Val. A nil Doc is encoded as an empty document.
func Document(d Doc) Val { return Val{t: bsontype.EmbeddedDocument, primitive: d} }

// Array constructs a BSON array Val.
func Array(a Arr) Val { return Val{t: bsontype.Array, primitive: a} }

// Type returns the BSON type of this value. The zero Val reports type 0.
func (v Val) Type() bsontype.Type { return v.t }

// IsZero returns true if this value is empty.
func (v Val) IsZero() bool { return v.t == bsontype.Type(0) }

// IsNull returns true if this value is BSON null or empty.
func (v Val) IsNull() bool { return v.t == bsontype.Null || v.IsZero() }

// IsNumber returns true if the type of v is a numeric BSON type.
func (v Val) IsNumber() bool {
	switch v.t {
	case bsontype.Int32, bsontype.Int64, bsontype.Double:
		return true
	}
	return false
}

// BooleanOK returns the boolean held by v and true, or false and false if v is not a boolean.
func (v Val) BooleanOK() (bool, bool) {
	b, ok := v.primitive.(bool)
	return b, ok && v.t == bsontype.Boolean
}

// Int32OK returns the int32 held by v.
func (v Val) Int32OK() (int32, bool) {
	i, ok := v.primitive.(int32)
	return i, ok && v.t == bsontype.Int32
}

// Int64OK returns the int64 held by v.
func (v Val) Int64OK() (int64, bool) {
	i, ok := v.primitive.(int64)
	return i, ok && v.t == bsontype.Int64
}

// DoubleOK returns the float64 held by v.
func (v Val) DoubleOK() (float64, bool) {
	f, ok := v.primitive.(float64)
	return f, ok && v.t == bsontype.Double
}

// StringValueOK returns the string held by v.
func (v Val) StringValueOK() (string, bool) {
	s, ok := v.primitive.(string)
	return s, ok && v.t == bsontype.String
}

// StringValue returns the string held by v, or the empty string if v is not a string.
func (v Val) StringValue() string {
	s, _ := v.StringValueOK()
	return s
}

// ObjectIDOK returns the ObjectID held by v.
func (v Val) ObjectIDOK() (primitive.ObjectID, bool) {
	oid, ok := v.primitive.(primitive.ObjectID)
	return oid, ok && v.t == bsontype.ObjectID
}

// BinaryOK returns the binary held by v.
func (v Val) BinaryOK() (primitive.Binary, bool) {
	b, ok := v.primitive.(primitive.Binary)
	return b, ok && v.t == bsontype.Binary
}

// TimestampOK returns the timestamp held by v.
func (v Val) TimestampOK() (primitive.Timestamp, bool) {
	ts, ok := v.primitive.(primitive.Timestamp)
	return ts, ok && v.t == bsontype.Timestamp
}

// DateTimeOK returns the datetime held by v.
func (v Val) DateTimeOK() (primitive.DateTime, bool) {
	dt, ok := v.primitive.(primitive.DateTime)
	return dt, ok && v.t == bsontype.DateTime
}

// DocumentOK returns the document held by v.
func (v Val) DocumentOK() (Doc, bool) {
	d, ok := v.primitive.(Doc)
	if v.t != bsontype.EmbeddedDocument {
		return nil, false
	}
	return d, ok || v.primitive == nil
}

// ArrayOK returns the array held by v.
func (v Val) ArrayOK() (Arr, bool) {
	a, ok := v.primitive.(Arr)
	if v.t != bsontype.Array {
		return nil, false
	}
	return a, ok || v.primitive == nil
}

// Float64OK converts any numeric value to a float64.
func (v Val) Float64OK() (float64, bool) {
	switch p := v.primitive.(type) {
	case int32:
		return float64(p), true
	case int64:
		return float64(p), true
	case float64:
		return p, true
	}
	return 0, false
}

// Interface returns the Go value the bson package would use for this value. Documents and
// arrays are returned as primitive.D and primitive.A.
func (v Val) Interface() interface{} {
	switch v.t {
	case bsontype.Type(0), bsontype.Null:
		return nil
	case bsontype.EmbeddedDocument:
		d, _ := v.DocumentOK()
		return d.D()
	case bsontype.Array:
		a, _ := v.ArrayOK()
		out := make(primitive.A, 0, len(a))
		for _, elem := range a {
			out = append(out, elem.Interface())
		}
		return out
	}
	return v.primitive
}

// Copy returns a deep copy of v.
func (v Val) Copy() Val {
	switch v.t {
	case bsontype.EmbeddedDocument:
		d, _ := v.DocumentOK()
		return Document(d.Copy())
	case bsontype.Array:
		a, _ := v.ArrayOK()
		cp := make(Arr, len(a))
		for i, elem := range a {
			cp[i] = elem.Copy()
		}
		return Array(cp)
	case bsontype.Binary:
		b, _ := v.BinaryOK()
		return Binary(b.Subtype, append([]byte(nil), b.Data...))
	}
	return v
}

// Equal compares v to v2 and returns true if they are equal. Embedded documents compare
// without regard to key order, arrays compare positionally, and numeric values compare only
// against values of the same BSON type.
func (v Val) Equal(v2 Val) bool {
	if v.IsNull() && v2.IsNull() {
		return true
	}
	if v.t != v2.t {
		return false
	}
	switch v.t {
	case bsontype.Double:
		f1, _ := v.DoubleOK()
		f2, _ := v2.DoubleOK()
		return math.Float64bits(f1) == math.Float64bits(f2)
	case bsontype.EmbeddedDocument:
		d1, _ := v.DocumentOK()
		d2, _ := v2.DocumentOK()
		return d1.Equal(d2)
	case bsontype.Array:
		a1, _ := v.ArrayOK()
		a2, _ := v2.ArrayOK()
		return a1.Equal(a2)
	case bsontype.Binary:
		b1, _ := v.BinaryOK()
		b2, _ := v2.BinaryOK()
		return b1.Subtype == b2.Subtype && bytes.Equal(b1.Data, b2.Data)
	case bsontype.Boolean, bsontype.Int32, bsontype.Int64, bsontype.String,
		bsontype.ObjectID, bsontype.Timestamp, bsontype.DateTime:
		return v.primitive == v2.primitive
	}
	_, b1, err1 := bson.MarshalValue(v.primitive)
	_, b2, err2 := bson.MarshalValue(v2.primitive)
	return err1 == nil && err2 == nil && bytes.Equal(b1, b2)
}

// Equal compares two arrays positionally.
func (a Arr) Equal(a2 Arr) bool {
	if len(a) != len(a2) {
		return false
	}
	for i := range a {
		if !a[i].Equal(a2[i]) {
			return false
		}
	}
	return true
}

// String implements the fmt.Stringer interface.
func (v Val) String() string {
	switch v.t {
	case bsontype.Type(0):
		return "<empty>"
	case bsontype.Null:
		return "null"
	case bsontype.String:
		return fmt.Sprintf("%q", v.primitive)
	case bsontype.EmbeddedDocument:
		d, _ := v.DocumentOK()
		return d.String()
	case bsontype.ObjectID:
		oid, _ := v.ObjectIDOK()
		return fmt.Sprintf("ObjectID(%q)", oid.Hex())
	}
	return fmt.Sprintf("%v", v.Interface())
}

// MarshalBSONValue implements the bson.ValueMarshaler interface.
func (v Val) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if v.IsNull() {
		return bsontype.Null, nil, nil
	}
	return bson.MarshalValue(v.Interface())
}

// UnmarshalBSONValue implements the bson.ValueUnmarshaler interface.
func (v *Val) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var x interface{}
	if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(&x); err != nil {
		return err
	}
	val, err := FromInterface(x)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// FromRawValue converts a bson.RawValue into a Val.
func FromRawValue(rv bson.RawValue) (Val, error) {
	var v Val
	if err := v.UnmarshalBSONValue(rv.Type, rv.Value); err != nil {
		return Val{}, err
	}
	return v, nil
}

// FromInterface converts a Go value into a Val. Integers follow the bson package rules: int
// values that fit in 32 bits become int32. Values without a direct mapping are marshaled with
// the bson package and converted from the result.
func FromInterface(x interface{}) (Val, error) {
	switch tt := x.(type) {
	case nil:
		return Null(), nil
	case Val:
		return tt, nil
	case Doc:
		return Document(tt), nil
	case Arr:
		return Array(tt), nil
	case bool:
		return Boolean(tt), nil
	case int8:
		return Int32(int32(tt)), nil
	case int16:
		return Int32(int32(tt)), nil
	case int32:
		return Int32(tt), nil
	case int:
		if tt >= math.MinInt32 && tt <= math.MaxInt32 {
			return Int32(int32(tt)), nil
		}
		return Int64(int64(tt)), nil
	case int64:
		return Int64(tt), nil
	case uint8:
		return Int32(int32(tt)), nil
	case uint16:
		return Int32(int32(tt)), nil
	case float32:
		return Double(float64(tt)), nil
	case float64:
		return Double(tt), nil
	case string:
		return String(tt), nil
	case primitive.ObjectID:
		return ObjectID(tt), nil
	case primitive.Binary:
		return Binary(tt.Subtype, tt.Data), nil
	case []byte:
		return Binary(0x00, tt), nil
	case primitive.Timestamp:
		return Timestamp(tt.T, tt.I), nil
	case primitive.DateTime:
		return DateTime(int64(tt)), nil
	case time.Time:
		return Time(tt), nil
	case primitive.Null:
		return Null(), nil
	case primitive.D:
		d, err := FromD(tt)
		if err != nil {
			return Val{}, err
		}
		return Document(d), nil
	case primitive.A:
		return fromSlice([]interface{}(tt))
	case []interface{}:
		return fromSlice(tt)
	case bson.Raw:
		d, err := ReadDoc(tt)
		if err != nil {
			return Val{}, err
		}
		return Document(d), nil
	case bson.RawValue:
		return FromRawValue(tt)
	}

	if rv := reflect.ValueOf(x); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return Null(), nil
	}

	t, data, err := bson.MarshalValue(x)
	if err != nil {
		return Val{}, err
	}
	switch t {
	case bsontype.EmbeddedDocument, bsontype.Array, bsontype.Int32, bsontype.Int64,
		bsontype.Double, bsontype.String, bsontype.Boolean, bsontype.Null:
		return FromRawValue(bson.RawValue{Type: t, Value: data})
	}
	return Val{t: t, primitive: x}, nil
}

func fromSlice(s []interface{}) (Val, error) {
	a := make(Arr, 0, len(s))
	for _, elem := range s {
		v, err := FromInterface(elem)
		if err != nil {
			return Val{}, err
		}
		a = append(a, v)
	}
	return Array(a), nil
}
