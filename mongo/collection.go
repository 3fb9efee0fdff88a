// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"

	"github.com/ikmak/mongo-functions-go/document"
	"github.com/ikmak/mongo-functions-go/future"
	"github.com/ikmak/mongo-functions-go/mongo/options"
	"github.com/ikmak/mongo-functions-go/x/functions/operation"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Collection performs operations on a given collection.
type Collection struct {
	client *Client
	db     *Database
	name   string
}

func newCollection(db *Database, name string) *Collection {
	return &Collection{
		client: db.client,
		db:     db,
		name:   name,
	}
}

// Name provides access to the name of the collection.
func (coll *Collection) Name() string {
	return coll.name
}

// Database provides access to the database that contains the collection.
func (coll *Collection) Database() *Database {
	return coll.db
}

func (coll *Collection) namespace() operation.Namespace {
	return operation.Namespace{DB: coll.db.name, Collection: coll.name}
}

// InsertOne inserts a single document into the collection. An ObjectID _id is added to a copy
// of the document when it has none; the document itself is never modified.
func (coll *Collection) InsertOne(ctx context.Context, doc interface{}) *future.Future[*InsertOneResult] {
	d, err := transformDocument(doc)
	if err != nil {
		return future.Rejected[*InsertOneResult](err)
	}
	d, id := ensureID(d)

	op := &operation.InsertOne{NS: coll.namespace(), Document: d}
	return execute(ctx, coll.client, op, func(rv bson.RawValue) (*InsertOneResult, error) {
		inserted, err := operation.DecodeInsertedID(rv)
		if err != nil {
			return nil, err
		}
		if inserted == nil {
			inserted = id
		}
		return &InsertOneResult{InsertedID: inserted}, nil
	})
}

// InsertMany inserts the provided documents in order. When a document is rejected the
// documents before it stay inserted and the future fails with a *BulkWriteError.
func (coll *Collection) InsertMany(ctx context.Context, docs []interface{}) *future.Future[*InsertManyResult] {
	if len(docs) == 0 {
		return future.Rejected[*InsertManyResult](ErrEmptySlice)
	}

	ds := make([]document.Doc, 0, len(docs))
	ids := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		d, err := transformDocument(doc)
		if err != nil {
			return future.Rejected[*InsertManyResult](err)
		}
		d, id := ensureID(d)
		ds = append(ds, d)
		ids = append(ids, id)
	}

	op := &operation.InsertMany{NS: coll.namespace(), Documents: ds}
	f := execute(ctx, coll.client, op, func(rv bson.RawValue) (*InsertManyResult, error) {
		inserted, err := operation.DecodeInsertedIDs(rv)
		if err != nil {
			return nil, err
		}
		res := &InsertManyResult{InsertedIDs: make(map[int]interface{}, len(inserted))}
		for i, id := range inserted {
			res.InsertedIDs[i] = id
		}
		return res, nil
	})
	return future.Catch(f, func(err error) error {
		var se *ServerError
		if !errors.As(err, &se) {
			return nil
		}
		bwe := &BulkWriteError{InsertedIDs: map[int]interface{}{}, Index: se.Index, Err: err}
		for i := 0; i < se.Index && i < len(ids); i++ {
			bwe.InsertedIDs[i] = ids[i]
		}
		return bwe
	})
}

// Count gets the number of documents matching the filter. A nil filter matches every
// document.
func (coll *Collection) Count(ctx context.Context, filter interface{},
	opts ...*options.CountOptions) *future.Future[int64] {

	f, err := transformDocument(filter)
	if err != nil {
		return future.Rejected[int64](err)
	}
	countOpts := options.MergeCountOptions(opts...)

	op := &operation.Count{NS: coll.namespace(), Query: f, Limit: countOpts.Limit}
	return execute(ctx, coll.client, op, operation.DecodeCount)
}

func (coll *Collection) delete(ctx context.Context, filter interface{}, many bool) *future.Future[*DeleteResult] {
	f, err := transformDocument(filter)
	if err != nil {
		return future.Rejected[*DeleteResult](err)
	}

	op := &operation.Delete{NS: coll.namespace(), Query: f, Many: many}
	return execute(ctx, coll.client, op, func(rv bson.RawValue) (*DeleteResult, error) {
		n, err := operation.DecodeDeletedCount(op.Name(), rv)
		if err != nil {
			return nil, err
		}
		return &DeleteResult{DeletedCount: n}, nil
	})
}

// DeleteOne deletes a single document matching the filter.
func (coll *Collection) DeleteOne(ctx context.Context, filter interface{}) *future.Future[*DeleteResult] {
	return coll.delete(ctx, filter, false)
}

// DeleteMany deletes every document matching the filter.
func (coll *Collection) DeleteMany(ctx context.Context, filter interface{}) *future.Future[*DeleteResult] {
	return coll.delete(ctx, filter, true)
}

func (coll *Collection) update(ctx context.Context, filter, update interface{}, many bool,
	opts ...*options.UpdateOptions) *future.Future[*UpdateResult] {

	f, err := transformDocument(filter)
	if err != nil {
		return future.Rejected[*UpdateResult](err)
	}
	u, err := transformDocument(update)
	if err != nil {
		return future.Rejected[*UpdateResult](err)
	}
	if err = checkUpdate(u); err != nil {
		return future.Rejected[*UpdateResult](err)
	}
	uo := options.MergeUpdateOptions(opts...)

	op := &operation.Update{NS: coll.namespace(), Query: f, Update: u, Upsert: uo.Upsert, Many: many}
	return execute(ctx, coll.client, op, func(rv bson.RawValue) (*UpdateResult, error) {
		reply, err := operation.DecodeUpdate(op.Name(), rv)
		if err != nil {
			return nil, err
		}
		return newUpdateResult(reply), nil
	})
}

// UpdateOne updates or replaces a single document matching the filter. The update is either
// a replacement document or a document of update operators such as $set.
func (coll *Collection) UpdateOne(ctx context.Context, filter, update interface{},
	opts ...*options.UpdateOptions) *future.Future[*UpdateResult] {

	return coll.update(ctx, filter, update, false, opts...)
}

// UpdateMany updates or replaces every document matching the filter.
func (coll *Collection) UpdateMany(ctx context.Context, filter, update interface{},
	opts ...*options.UpdateOptions) *future.Future[*UpdateResult] {

	return coll.update(ctx, filter, update, true, opts...)
}

func (coll *Collection) findOperation(filter interface{}, one bool, opts ...*options.FindOptions) (*operation.Find, error) {
	f, err := transformDocument(filter)
	if err != nil {
		return nil, err
	}
	fo := options.MergeFindOptions(opts...)
	op := &operation.Find{NS: coll.namespace(), Query: f, Limit: fo.Limit, One: one}
	if op.Projection, err = transformOptional(fo.Projection); err != nil {
		return nil, err
	}
	if op.Sort, err = transformOptional(fo.Sort); err != nil {
		return nil, err
	}
	return op, nil
}

// Find returns a FindIterable over the documents matching the filter. Nothing is sent until
// the iterable is consumed.
func (coll *Collection) Find(filter interface{}, opts ...*options.FindOptions) *FindIterable {
	op, err := coll.findOperation(filter, false, opts...)
	return &FindIterable{coll: coll, op: op, err: err}
}

// FindOne returns the first document matching the filter in sort order, or nil when nothing
// matches.
func (coll *Collection) FindOne(ctx context.Context, filter interface{},
	opts ...*options.FindOptions) *future.Future[*document.Doc] {

	op, err := coll.findOperation(filter, true, opts...)
	if err != nil {
		return future.Rejected[*document.Doc](err)
	}
	return execute(ctx, coll.client, op, func(rv bson.RawValue) (*document.Doc, error) {
		return operation.DecodeDocumentOrNull(op.Name(), rv)
	})
}

func (coll *Collection) findAndModify(ctx context.Context, kind operation.FindAndModifyKind,
	filter, update interface{}, opts ...*options.FindOneAndModifyOptions) *future.Future[*document.Doc] {

	op := &operation.FindAndModify{NS: coll.namespace(), Kind: kind}
	var err error
	if op.Query, err = transformDocument(filter); err != nil {
		return future.Rejected[*document.Doc](err)
	}
	if kind != operation.FindAndDelete {
		if op.Update, err = transformDocument(update); err != nil {
			return future.Rejected[*document.Doc](err)
		}
		if kind == operation.FindAndReplace {
			err = ensureNoDollarKey(op.Update)
		} else {
			err = checkUpdate(op.Update)
		}
		if err != nil {
			return future.Rejected[*document.Doc](err)
		}
	}

	fo := options.MergeFindOneAndModifyOptions(opts...)
	if op.Projection, err = transformOptional(fo.Projection); err != nil {
		return future.Rejected[*document.Doc](err)
	}
	if op.Sort, err = transformOptional(fo.Sort); err != nil {
		return future.Rejected[*document.Doc](err)
	}
	if kind != operation.FindAndDelete {
		op.Upsert = fo.Upsert
		if fo.ReturnDocument != nil {
			returnNew := *fo.ReturnDocument == options.After
			op.ReturnNewDocument = &returnNew
		}
	}

	return execute(ctx, coll.client, op, func(rv bson.RawValue) (*document.Doc, error) {
		return operation.DecodeDocumentOrNull(op.Name(), rv)
	})
}

// FindOneAndUpdate modifies a single document matching the filter and returns it as it was
// before the update, or after it with options.After. The future holds nil when nothing
// matched and no document was upserted.
func (coll *Collection) FindOneAndUpdate(ctx context.Context, filter, update interface{},
	opts ...*options.FindOneAndModifyOptions) *future.Future[*document.Doc] {

	return coll.findAndModify(ctx, operation.FindAndUpdate, filter, update, opts...)
}

// FindOneAndReplace replaces a single document matching the filter and returns it. The
// replacement must not contain update operators.
func (coll *Collection) FindOneAndReplace(ctx context.Context, filter, replacement interface{},
	opts ...*options.FindOneAndModifyOptions) *future.Future[*document.Doc] {

	return coll.findAndModify(ctx, operation.FindAndReplace, filter, replacement, opts...)
}

// FindOneAndDelete deletes a single document matching the filter and returns it. Upsert and
// ReturnDocument options are ignored.
func (coll *Collection) FindOneAndDelete(ctx context.Context, filter interface{},
	opts ...*options.FindOneAndModifyOptions) *future.Future[*document.Doc] {

	return coll.findAndModify(ctx, operation.FindAndDelete, filter, nil, opts...)
}
