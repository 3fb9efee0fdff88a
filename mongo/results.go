// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import "github.com/ikmak/mongo-functions-go/x/functions/operation"

// InsertOneResult is a result of an InsertOne operation.
//
// InsertedID will be a primitive.ObjectID when the _id was generated by the client.
type InsertOneResult struct {
	// The identifier that was inserted.
	InsertedID interface{}
}

// InsertManyResult is a result of an InsertMany operation.
type InsertManyResult struct {
	// Maps the indexes of inserted documents to their _id fields.
	InsertedIDs map[int]interface{}
}

// DeleteResult is a result of a DeleteOne or DeleteMany operation.
type DeleteResult struct {
	// The number of documents that were deleted.
	DeletedCount int64
}

// UpdateResult is a result of an update operation.
type UpdateResult struct {
	// The number of documents that matched the filter.
	MatchedCount int64
	// The number of documents that were modified.
	ModifiedCount int64
	// The identifier of the inserted document if an upsert took place.
	UpsertedID interface{}
}

func newUpdateResult(r operation.UpdateReply) *UpdateResult {
	return &UpdateResult{
		MatchedCount:  r.MatchedCount,
		ModifiedCount: r.ModifiedCount,
		UpsertedID:    r.UpsertedID,
	}
}
