// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package emulator

import (
	"bytes"
	"strings"

	"github.com/ikmak/mongo-functions-go/document"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// typeRank orders BSON types the way the server does when comparing values of different
// types.
func typeRank(t bsontype.Type) int {
	switch t {
	case bsontype.MinKey:
		return 0
	case bsontype.Type(0), bsontype.Null, bsontype.Undefined:
		return 1
	case bsontype.Int32, bsontype.Int64, bsontype.Double, bsontype.Decimal128:
		return 2
	case bsontype.String, bsontype.Symbol:
		return 3
	case bsontype.EmbeddedDocument:
		return 4
	case bsontype.Array:
		return 5
	case bsontype.Binary:
		return 6
	case bsontype.ObjectID:
		return 7
	case bsontype.Boolean:
		return 8
	case bsontype.DateTime:
		return 9
	case bsontype.Timestamp:
		return 10
	case bsontype.Regex:
		return 11
	case bsontype.MaxKey:
		return 13
	}
	return 12
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func bsonBytes(v document.Val) []byte {
	_, b, _ := v.MarshalBSONValue()
	return b
}

// compareValues returns -1, 0 or 1. Numbers of different BSON types compare by value.
func compareValues(a, b document.Val) int {
	if c := typeRank(a.Type()) - typeRank(b.Type()); c != 0 {
		if c < 0 {
			return -1
		}
		return 1
	}

	switch typeRank(a.Type()) {
	case 1:
		return 0
	case 2:
		ai, aInt := integral(a)
		bi, bInt := integral(b)
		if aInt && bInt {
			return cmpInt(ai, bi)
		}
		af, _ := a.Float64OK()
		bf, _ := b.Float64OK()
		return cmpFloat(af, bf)
	case 3:
		return strings.Compare(a.StringValue(), b.StringValue())
	case 4:
		ad, _ := a.DocumentOK()
		bd, _ := b.DocumentOK()
		return compareDocs(ad, bd)
	case 5:
		aa, _ := a.ArrayOK()
		ba, _ := b.ArrayOK()
		for i := 0; i < len(aa) && i < len(ba); i++ {
			if c := compareValues(aa[i], ba[i]); c != 0 {
				return c
			}
		}
		return cmpInt(int64(len(aa)), int64(len(ba)))
	case 6:
		ab, _ := a.BinaryOK()
		bb, _ := b.BinaryOK()
		if c := cmpInt(int64(len(ab.Data)), int64(len(bb.Data))); c != 0 {
			return c
		}
		if c := cmpInt(int64(ab.Subtype), int64(bb.Subtype)); c != 0 {
			return c
		}
		return bytes.Compare(ab.Data, bb.Data)
	case 7:
		ao, _ := a.ObjectIDOK()
		bo, _ := b.ObjectIDOK()
		return bytes.Compare(ao[:], bo[:])
	case 8:
		ab, _ := a.BooleanOK()
		bb, _ := b.BooleanOK()
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	case 9:
		ad, _ := a.DateTimeOK()
		bd, _ := b.DateTimeOK()
		return cmpInt(int64(ad), int64(bd))
	case 10:
		at, _ := a.TimestampOK()
		bt, _ := b.TimestampOK()
		if c := cmpInt(int64(at.T), int64(bt.T)); c != 0 {
			return c
		}
		return cmpInt(int64(at.I), int64(bt.I))
	}
	return bytes.Compare(bsonBytes(a), bsonBytes(b))
}

func compareDocs(a, b document.Doc) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := typeRank(a[i].Value.Type()) - typeRank(b[i].Value.Type()); c != 0 {
			return cmpInt(int64(c), 0)
		}
		if c := strings.Compare(a[i].Key, b[i].Key); c != 0 {
			return c
		}
		if c := compareValues(a[i].Value, b[i].Value); c != 0 {
			return c
		}
	}
	return cmpInt(int64(len(a)), int64(len(b)))
}

func integral(v document.Val) (int64, bool) {
	if i, ok := v.Int32OK(); ok {
		return int64(i), true
	}
	if i, ok := v.Int64OK(); ok {
		return i, true
	}
	return 0, false
}

// valuesEqual reports query equality: numbers compare by value, everything else must have
// the same type and content.
func valuesEqual(a, b document.Val) bool {
	return typeRank(a.Type()) == typeRank(b.Type()) && compareValues(a, b) == 0
}
