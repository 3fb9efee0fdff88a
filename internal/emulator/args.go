// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package emulator

import (
	"fmt"

	"github.com/ikmak/mongo-functions-go/document"
	"github.com/ikmak/mongo-functions-go/internal/mathutil"
	"github.com/ikmak/mongo-functions-go/x/functions"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// arguments is the argument document of a mongo service function.
type arguments document.Doc

func argError(format string, a ...interface{}) error {
	return functions.NewServiceError(functions.CodeArgumentsNotAllowed, fmt.Sprintf(format, a...))
}

func (a arguments) lookup(key string) (document.Val, bool) {
	v, ok := document.Doc(a).Lookup(key)
	if !ok || v.IsNull() {
		return document.Val{}, false
	}
	return v, true
}

func (a arguments) str(key string) (string, error) {
	v, ok := a.lookup(key)
	if !ok {
		return "", argError("argument %q is required", key)
	}
	s, ok := v.StringValueOK()
	if !ok || s == "" {
		return "", argError("argument %q must be a non-empty string", key)
	}
	return s, nil
}

// doc returns the document argument key, or nil when it is absent.
func (a arguments) doc(key string, required bool) (document.Doc, error) {
	v, ok := a.lookup(key)
	if !ok {
		if required {
			return nil, argError("argument %q is required", key)
		}
		return nil, nil
	}
	d, ok := v.DocumentOK()
	if !ok {
		return nil, argError("argument %q must be a document, got %s", key, v.Type())
	}
	return d, nil
}

func (a arguments) docs(key string) ([]document.Doc, error) {
	v, ok := a.lookup(key)
	if !ok {
		return nil, argError("argument %q is required", key)
	}
	arr, ok := v.ArrayOK()
	if !ok {
		return nil, argError("argument %q must be an array, got %s", key, v.Type())
	}
	out := make([]document.Doc, 0, len(arr))
	for i, elem := range arr {
		d, ok := elem.DocumentOK()
		if !ok {
			return nil, argError("element %d of %q must be a document, got %s", i, key, elem.Type())
		}
		out = append(out, d)
	}
	return out, nil
}

func (a arguments) boolean(key string) (bool, error) {
	v, ok := a.lookup(key)
	if !ok {
		return false, nil
	}
	b, ok := v.BooleanOK()
	if !ok {
		return false, argError("argument %q must be a boolean, got %s", key, v.Type())
	}
	return b, nil
}

func (a arguments) int64(key string) (int64, error) {
	v, ok := a.lookup(key)
	if !ok {
		return 0, nil
	}
	var (
		n   int64
		err error
	)
	switch v.Type() {
	case bsontype.Int32:
		i, _ := v.Int32OK()
		n = int64(i)
	case bsontype.Int64:
		n, _ = v.Int64OK()
	case bsontype.Double:
		f, _ := v.DoubleOK()
		n, err = mathutil.SafeConvertNumeric[int64](f)
	default:
		return 0, argError("argument %q must be a number, got %s", key, v.Type())
	}
	if err != nil {
		return 0, argError("argument %q must be an integer: %v", key, err)
	}
	if n < 0 {
		n = -n
	}
	return n, nil
}
