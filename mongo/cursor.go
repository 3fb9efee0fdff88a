// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"
	"reflect"

	"github.com/ikmak/mongo-functions-go/document"
	"github.com/ikmak/mongo-functions-go/future"
	"github.com/ikmak/mongo-functions-go/x/functions/operation"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// FindIterable is the lazy result of a Find. Nothing is sent to the service until it is
// consumed, and every consumer runs the query again.
type FindIterable struct {
	coll *Collection
	op   *operation.Find
	err  error
}

func (it *FindIterable) fetch(ctx context.Context, op *operation.Find) *future.Future[[]document.Doc] {
	if it.err != nil {
		return future.Rejected[[]document.Doc](it.err)
	}
	return execute(ctx, it.coll.client, op, func(rv bson.RawValue) ([]document.Doc, error) {
		return operation.DecodeDocuments(op.Name(), rv)
	})
}

// Iterator returns a new Cursor over the matching documents.
func (it *FindIterable) Iterator() *Cursor {
	fetched := false
	return &Cursor{
		next: func(ctx context.Context) ([]document.Doc, error) {
			if fetched {
				return nil, nil
			}
			fetched = true
			return wait(ctx, it.fetch(ctx, it.op))
		},
	}
}

// First returns the first matching document, or nil when nothing matches.
func (it *FindIterable) First(ctx context.Context) *future.Future[*document.Doc] {
	if it.err != nil {
		return future.Rejected[*document.Doc](it.err)
	}
	op := *it.op
	limit := int64(1)
	op.Limit = &limit
	return future.Then(it.fetch(ctx, &op), func(docs []document.Doc) (*document.Doc, error) {
		if len(docs) == 0 {
			return nil, nil
		}
		return &docs[0], nil
	})
}

// All returns every matching document.
func (it *FindIterable) All(ctx context.Context) *future.Future[[]document.Doc] {
	return it.fetch(ctx, it.op)
}

// wait blocks on f. When ctx ends first the error is reported as a TransportError.
func wait[T any](ctx context.Context, f *future.Future[T]) (T, error) {
	v, err := f.Get(ctx)
	if err != nil && ctx != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) && !IsTransportError(err) {
		err = &TransportError{Op: "call", Err: err}
	}
	return v, err
}

// Cursor is used to iterate the documents of a Find. Each document is decoded into the result
// according to the rules of the bson package.
//
// A typical usage of the Cursor type would be:
//
//	cur := coll.Find(filter).Iterator()
//	defer cur.Close(ctx)
//
//	for cur.Next(ctx) {
//		var elem bson.D
//		if err := cur.Decode(&elem); err != nil {
//			log.Fatal(err)
//		}
//
//		// do something with elem....
//	}
//
//	if err := cur.Err(); err != nil {
//		log.Fatal(err)
//	}
type Cursor struct {
	// Current is the document the cursor is positioned on.
	Current document.Doc

	next   func(context.Context) ([]document.Doc, error)
	page   []document.Doc
	pos    int
	done   bool
	closed bool
	err    error
}

// Next moves the cursor to the next document, fetching a new page when the current one is
// used up. It returns false once a fetched page is empty, an error happens or the cursor is
// closed.
func (c *Cursor) Next(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.closed || c.done || c.err != nil {
		return false
	}
	if c.pos < len(c.page) {
		c.Current = c.page[c.pos]
		c.pos++
		return true
	}

	page, err := c.next(ctx)
	if err != nil {
		c.err = err
		c.Current = nil
		return false
	}
	if len(page) == 0 {
		c.done = true
		c.page = nil
		c.Current = nil
		return false
	}
	c.page, c.pos = page, 1
	c.Current = page[0]
	return true
}

// Decode will decode the current document into val.
func (c *Cursor) Decode(val interface{}) error {
	if c.Current == nil {
		return errors.New("cursor is not positioned on a document")
	}
	return c.Current.Decode(val)
}

// Err returns the current error.
func (c *Cursor) Err() error { return c.err }

// All decodes every remaining document into results, which must be a pointer to a slice, and
// closes the cursor.
func (c *Cursor) All(ctx context.Context, results interface{}) error {
	resultsVal := reflect.ValueOf(results)
	if resultsVal.Kind() != reflect.Ptr || resultsVal.IsNil() {
		return errors.Errorf("results argument must be a pointer to a slice, but was a %v", resultsVal.Kind())
	}
	sliceVal := resultsVal.Elem()
	if sliceVal.Kind() != reflect.Slice {
		return errors.Errorf("results argument must be a pointer to a slice, but was a pointer to %v", sliceVal.Kind())
	}
	defer c.Close(ctx)

	elemType := sliceVal.Type().Elem()
	sliceVal = sliceVal.Slice(0, 0)
	for c.Next(ctx) {
		elem := reflect.New(elemType)
		if err := c.Decode(elem.Interface()); err != nil {
			return err
		}
		sliceVal = reflect.Append(sliceVal, elem.Elem())
	}
	if err := c.Err(); err != nil {
		return err
	}
	resultsVal.Elem().Set(sliceVal)
	return nil
}

// Close closes this cursor. Next returns false afterwards.
func (c *Cursor) Close(context.Context) error {
	c.closed = true
	c.page = nil
	c.Current = nil
	return nil
}
