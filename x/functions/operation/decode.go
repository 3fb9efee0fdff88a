// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package operation

import (
	"fmt"
	"math"

	"github.com/ikmak/mongo-functions-go/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ResponseError is returned when a reply does not have the shape of the called function's
// result.
type ResponseError struct {
	Function string
	Reason   string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected %s response: %s", e.Function, e.Reason)
}

func responseErr(fn, format string, args ...interface{}) error {
	return &ResponseError{Function: fn, Reason: fmt.Sprintf(format, args...)}
}

// UpdateReply is the decoded result of updateOne and updateMany.
type UpdateReply struct {
	MatchedCount  int64
	ModifiedCount int64
	// UpsertedID is nil when no document was upserted.
	UpsertedID interface{}
}

func replyDoc(fn string, rv bson.RawValue) (bson.Raw, error) {
	doc, ok := rv.DocumentOK()
	if !ok {
		return nil, responseErr(fn, "expected a document, got %s", rv.Type)
	}
	if err := doc.Validate(); err != nil {
		return nil, responseErr(fn, "invalid document: %v", err)
	}
	return doc, nil
}

// toInt64 reads a count, which must be a non-negative integer.
func toInt64(fn, field string, rv bson.RawValue) (int64, error) {
	var n int64
	switch rv.Type {
	case bsontype.Int32:
		n = int64(rv.Int32())
	case bsontype.Int64:
		n = rv.Int64()
	case bsontype.Double:
		f := rv.Double()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, responseErr(fn, "%s is not an integer: %v", field, f)
		}
		if f < 0 || f >= math.MaxInt64 {
			return 0, responseErr(fn, "%s is out of range: %v", field, f)
		}
		n = int64(f)
	default:
		return 0, responseErr(fn, "%s must be a number, got %s", field, rv.Type)
	}
	if n < 0 {
		return 0, responseErr(fn, "%s is negative: %d", field, n)
	}
	return n, nil
}

func fieldInt64(fn string, doc bson.Raw, field string) (int64, error) {
	rv, err := doc.LookupErr(field)
	if err != nil {
		return 0, responseErr(fn, "missing %s", field)
	}
	return toInt64(fn, field, rv)
}

func idValue(fn string, rv bson.RawValue) (interface{}, error) {
	v, err := document.FromRawValue(rv)
	if err != nil {
		return nil, responseErr(fn, "cannot decode id: %v", err)
	}
	return v.Interface(), nil
}

// DecodeInsertedID reads insertedId from an insertOne reply.
func DecodeInsertedID(rv bson.RawValue) (interface{}, error) {
	doc, err := replyDoc(FuncInsertOne, rv)
	if err != nil {
		return nil, err
	}
	id, err := doc.LookupErr("insertedId")
	if err != nil {
		return nil, responseErr(FuncInsertOne, "missing insertedId")
	}
	return idValue(FuncInsertOne, id)
}

// DecodeInsertedIDs reads insertedIds from an insertMany reply.
func DecodeInsertedIDs(rv bson.RawValue) ([]interface{}, error) {
	doc, err := replyDoc(FuncInsertMany, rv)
	if err != nil {
		return nil, err
	}
	idsVal, err := doc.LookupErr("insertedIds")
	if err != nil {
		return nil, responseErr(FuncInsertMany, "missing insertedIds")
	}
	arr, ok := idsVal.ArrayOK()
	if !ok {
		return nil, responseErr(FuncInsertMany, "insertedIds must be an array, got %s", idsVal.Type)
	}
	vals, err := arr.Values()
	if err != nil {
		return nil, responseErr(FuncInsertMany, "invalid insertedIds: %v", err)
	}
	ids := make([]interface{}, 0, len(vals))
	for _, v := range vals {
		id, err := idValue(FuncInsertMany, v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DecodeCount reads a count reply. The service may answer with any numeric type.
func DecodeCount(rv bson.RawValue) (int64, error) {
	return toInt64(FuncCount, "count", rv)
}

// DecodeDeletedCount reads deletedCount from a deleteOne or deleteMany reply.
func DecodeDeletedCount(fn string, rv bson.RawValue) (int64, error) {
	doc, err := replyDoc(fn, rv)
	if err != nil {
		return 0, err
	}
	return fieldInt64(fn, doc, "deletedCount")
}

// DecodeUpdate reads an updateOne or updateMany reply.
func DecodeUpdate(fn string, rv bson.RawValue) (UpdateReply, error) {
	doc, err := replyDoc(fn, rv)
	if err != nil {
		return UpdateReply{}, err
	}
	var reply UpdateReply
	if reply.MatchedCount, err = fieldInt64(fn, doc, "matchedCount"); err != nil {
		return UpdateReply{}, err
	}
	if reply.ModifiedCount, err = fieldInt64(fn, doc, "modifiedCount"); err != nil {
		return UpdateReply{}, err
	}
	if up, err := doc.LookupErr("upsertedId"); err == nil && up.Type != bsontype.Null {
		if reply.UpsertedID, err = idValue(fn, up); err != nil {
			return UpdateReply{}, err
		}
	}
	return reply, nil
}

// DecodeDocumentOrNull reads a reply holding one document, or null when nothing matched.
func DecodeDocumentOrNull(fn string, rv bson.RawValue) (*document.Doc, error) {
	switch rv.Type {
	case bsontype.Null, bsontype.Undefined, bsontype.Type(0):
		return nil, nil
	}
	raw, err := replyDoc(fn, rv)
	if err != nil {
		return nil, err
	}
	doc, err := document.ReadDoc(raw)
	if err != nil {
		return nil, responseErr(fn, "cannot decode document: %v", err)
	}
	return &doc, nil
}

// DecodeDocuments reads a reply holding an array of documents.
func DecodeDocuments(fn string, rv bson.RawValue) ([]document.Doc, error) {
	if rv.Type == bsontype.Null {
		return []document.Doc{}, nil
	}
	arr, ok := rv.ArrayOK()
	if !ok {
		return nil, responseErr(fn, "expected an array, got %s", rv.Type)
	}
	vals, err := arr.Values()
	if err != nil {
		return nil, responseErr(fn, "invalid array: %v", err)
	}
	docs := make([]document.Doc, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.DocumentOK()
		if !ok {
			return nil, responseErr(fn, "element %d is a %s, not a document", i, v.Type)
		}
		doc, err := document.ReadDoc(raw)
		if err != nil {
			return nil, responseErr(fn, "cannot decode element %d: %v", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
