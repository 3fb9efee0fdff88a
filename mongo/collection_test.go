// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"
	"sync"
	"testing"

	"github.com/ikmak/mongo-functions-go/document"
	"github.com/ikmak/mongo-functions-go/future"
	"github.com/ikmak/mongo-functions-go/mongo/options"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func decodeItem(t *testing.T, doc *document.Doc) item {
	t.Helper()
	require.NotNil(t, doc)
	var it item
	require.NoError(t, doc.Decode(&it))
	return it
}

func TestCollection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("names", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t)
		db := client.Database("shop")
		coll := db.Collection("orders")
		assert.Equal(t, "orders", coll.Name())
		assert.Equal(t, db, coll.Database())
		assert.Equal(t, "shop", db.Name())
		assert.Equal(t, client, db.Client())
		assert.Equal(t, options.DefaultServiceName, client.ServiceName())
	})

	t.Run("insert count delete", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll,
			item{ID: 1, Team: "red"},
			item{ID: 2, Team: "red"},
			item{ID: 3, Team: "blue"},
			item{ID: 4, Team: "red"},
		)

		assert.Equal(t, int64(3), countAll(t, coll, bson.D{{"team", "red"}}))
		res, err := coll.DeleteMany(ctx, bson.D{{"team", "red"}}).Wait()
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.DeletedCount)
		assert.Equal(t, int64(1), countAll(t, coll, nil))
	})

	t.Run("count is idempotent", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll, item{ID: 1}, item{ID: 2}, item{ID: 3})
		assert.Equal(t, countAll(t, coll, nil), countAll(t, coll, nil))

		n, err := coll.Count(ctx, nil, options.Count().SetLimit(2)).Wait()
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("insertOne generates an id without touching the input", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		doc := bson.D{{"name", "widget"}}

		res, err := coll.InsertOne(ctx, doc).Wait()
		require.NoError(t, err)
		oid, ok := res.InsertedID.(primitive.ObjectID)
		require.True(t, ok, "expected an ObjectID, got %T", res.InsertedID)
		assert.Len(t, doc, 1)

		found, err := coll.FindOne(ctx, bson.D{{"_id", oid}}).Wait()
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, []string{"_id", "name"}, found.Keys())
	})

	t.Run("insertOne keeps a provided id", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		res, err := coll.InsertOne(ctx, item{ID: 7}).Wait()
		require.NoError(t, err)
		assert.EqualValues(t, 7, res.InsertedID)
	})

	t.Run("duplicate key leaves the collection unchanged", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll, item{ID: 1, Name: "first"})

		_, err := coll.InsertOne(ctx, item{ID: 1, Name: "second"}).Wait()
		require.Error(t, err)
		assert.True(t, IsDuplicateKeyError(err), "unexpected error %v", err)
		var se *ServerError
		require.True(t, errors.As(err, &se))
		assert.Contains(t, se.Message, "E11000")

		assert.Equal(t, int64(1), countAll(t, coll, nil))
		found, err := coll.FindOne(ctx, bson.D{{"_id", 1}}).Wait()
		require.NoError(t, err)
		assert.Equal(t, "first", decodeItem(t, found).Name)
	})

	t.Run("nil document", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		var doc *document.Doc
		_, err := coll.InsertOne(ctx, doc).Wait()
		assert.Equal(t, ErrNilDocument, err)
	})

	t.Run("insertMany", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		res, err := coll.InsertMany(ctx, []interface{}{item{ID: 1}, bson.D{{"name", "x"}}}).Wait()
		require.NoError(t, err)
		require.Len(t, res.InsertedIDs, 2)
		assert.EqualValues(t, 1, res.InsertedIDs[0])
		assert.IsType(t, primitive.ObjectID{}, res.InsertedIDs[1])

		_, err = coll.InsertMany(ctx, nil).Wait()
		assert.Equal(t, ErrEmptySlice, err)
	})

	t.Run("insertMany partial failure", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll, item{ID: 2})

		_, err := coll.InsertMany(ctx, []interface{}{item{ID: 1}, item{ID: 2}, item{ID: 3}}).Wait()
		var bwe *BulkWriteError
		require.True(t, errors.As(err, &bwe), "unexpected error %v", err)
		assert.Equal(t, 1, bwe.Index)
		assert.Len(t, bwe.InsertedIDs, 1)
		assert.EqualValues(t, 1, bwe.InsertedIDs[0])
		assert.True(t, IsDuplicateKeyError(err))
		assert.Equal(t, int64(2), countAll(t, coll, nil))
	})

	t.Run("invalid filter", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll, item{ID: 1, V: 1})

		filters := []struct {
			name   string
			filter bson.D
		}{
			{"unknown top level operator", bson.D{{"$where", "true"}}},
			{"unknown operator", bson.D{{"v", bson.D{{"$near", 1}}}}},
			{"logical operand not an array", bson.D{{"$and", 1}}},
			{"empty logical operand", bson.D{{"$or", bson.A{}}}},
			{"logical entry not a document", bson.D{{"$nor", bson.A{1}}}},
			{"in operand not an array", bson.D{{"v", bson.D{{"$in", 1}}}}},
		}
		for _, f := range filters {
			_, err := coll.Count(ctx, f.filter).Wait()
			assert.True(t, IsInvalidFilterError(err), "%s: unexpected error %T: %v", f.name, err, err)
			_, err = coll.FindOne(ctx, f.filter).Wait()
			assert.True(t, IsInvalidFilterError(err), "%s: unexpected error %T: %v", f.name, err, err)
		}
		assert.Equal(t, int64(1), countAll(t, coll, nil))
	})

	t.Run("deleteOne", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll, item{ID: 1, Team: "red"}, item{ID: 2, Team: "red"})

		res, err := coll.DeleteOne(ctx, bson.D{{"team", "red"}}).Wait()
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.DeletedCount)
		res, err = coll.DeleteOne(ctx, bson.D{{"team", "green"}}).Wait()
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.DeletedCount)
		assert.Equal(t, int64(1), countAll(t, coll, nil))
	})
}

func TestCollectionUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("set counts modified documents", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll, item{ID: 1, V: 1})

		update := bson.D{{"$set", bson.D{{"v", 5}}}}
		res, err := coll.UpdateOne(ctx, bson.D{{"_id", 1}}, update).Wait()
		require.NoError(t, err)
		assert.Equal(t, &UpdateResult{MatchedCount: 1, ModifiedCount: 1}, res)

		res, err = coll.UpdateOne(ctx, bson.D{{"_id", 1}}, update).Wait()
		require.NoError(t, err)
		assert.Equal(t, &UpdateResult{MatchedCount: 1, ModifiedCount: 0}, res)
	})

	t.Run("updateMany replacement keeps ids", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll, item{ID: 1, Team: "red"}, item{ID: 2, Team: "red"}, item{ID: 3, Team: "blue"})

		res, err := coll.UpdateMany(ctx, bson.D{{"team", "red"}}, bson.D{{"name", "replaced"}}).Wait()
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.MatchedCount)
		assert.Equal(t, int64(2), countAll(t, coll, bson.D{{"name", "replaced"}}))
		assert.Equal(t, int64(0), countAll(t, coll, bson.D{{"team", "red"}}))

		for _, id := range []int{1, 2} {
			found, err := coll.FindOne(ctx, bson.D{{"_id", id}}).Wait()
			require.NoError(t, err)
			assert.Equal(t, item{ID: id, Name: "replaced"}, decodeItem(t, found))
		}
	})

	t.Run("upsert", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		res, err := coll.UpdateOne(ctx,
			bson.D{{"name", "zed"}},
			bson.D{{"$set", bson.D{{"v", 1}}}},
			options.Update().SetUpsert(true),
		).Wait()
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.MatchedCount)
		require.NotNil(t, res.UpsertedID)

		found, err := coll.FindOne(ctx, bson.D{{"name", "zed"}, {"v", 1}}).Wait()
		require.NoError(t, err)
		require.NotNil(t, found)
		id, _ := found.ID()
		assert.Equal(t, res.UpsertedID, id.Interface())

		res, err = coll.UpdateOne(ctx, bson.D{{"name", "nobody"}}, bson.D{{"$set", bson.D{{"v", 1}}}}).Wait()
		require.NoError(t, err)
		assert.Equal(t, &UpdateResult{}, res)
		assert.Equal(t, int64(1), countAll(t, coll, nil))
	})

	t.Run("invalid updates", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll, item{ID: 1, V: 1})

		_, err := coll.UpdateOne(ctx, nil, bson.D{{"$set", bson.D{{"v", 2}}}, {"name", "x"}}).Wait()
		assert.True(t, IsInvalidUpdateError(err), "unexpected error %v", err)

		_, err = coll.UpdateMany(ctx, nil, bson.D{{"$frobnicate", bson.D{{"v", 2}}}}).Wait()
		assert.True(t, IsInvalidUpdateError(err), "unexpected error %v", err)

		_, err = coll.UpdateOne(ctx, bson.D{{"_id", 1}}, bson.D{{"$inc", bson.D{{"v", "s"}}}}).Wait()
		assert.True(t, IsInvalidUpdateError(err), "unexpected error %T: %v", err, err)

		_, err = coll.UpdateOne(ctx, bson.D{{"_id", 1}}, bson.D{{"$set", bson.D{{"$x", 1}}}}).Wait()
		assert.True(t, IsInvalidUpdateError(err), "unexpected error %T: %v", err, err)

		found, err := coll.FindOne(ctx, bson.D{{"_id", 1}}).Wait()
		require.NoError(t, err)
		assert.Equal(t, item{ID: 1, V: 1}, decodeItem(t, found))
	})

	t.Run("concurrent increments", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll, item{ID: 1})

		const n = 20
		futures := make([]*future.Future[*UpdateResult], n)
		for i := range futures {
			futures[i] = coll.UpdateOne(ctx, bson.D{{"_id", 1}}, bson.D{{"$inc", bson.D{{"v", 1}}}})
		}
		for _, f := range futures {
			_, err := f.Wait()
			require.NoError(t, err)
		}
		found, err := coll.FindOne(ctx, bson.D{{"_id", 1}}).Wait()
		require.NoError(t, err)
		assert.Equal(t, n, decodeItem(t, found).V)
	})
}

func TestCollectionFind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	coll := newTestCollection(t)
	seedItems(t, coll,
		item{ID: 1, Name: "a", V: 30},
		item{ID: 2, Name: "b", V: 10},
		item{ID: 3, Name: "c", V: 20},
	)

	t.Run("findOne respects sort", func(t *testing.T) {
		t.Parallel()
		found, err := coll.FindOne(ctx, nil, options.Find().SetSort(bson.D{{"v", 1}})).Wait()
		require.NoError(t, err)
		assert.Equal(t, 2, decodeItem(t, found).ID)
	})

	t.Run("findOne without match", func(t *testing.T) {
		t.Parallel()
		found, err := coll.FindOne(ctx, bson.D{{"name", "zzz"}}).Wait()
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("projection", func(t *testing.T) {
		t.Parallel()
		found, err := coll.FindOne(ctx, bson.D{{"_id", 1}}, options.Find().SetProjection(bson.D{{"name", 1}})).Wait()
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, []string{"_id", "name"}, found.Keys())
	})

	t.Run("find with limit and sort", func(t *testing.T) {
		t.Parallel()
		docs, err := coll.Find(nil, options.Find().SetSort(bson.D{{"v", -1}}).SetLimit(2)).All(ctx).Wait()
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, 1, decodeItem(t, &docs[0]).ID)
		assert.Equal(t, 3, decodeItem(t, &docs[1]).ID)
	})

	t.Run("first", func(t *testing.T) {
		t.Parallel()
		it := coll.Find(bson.D{{"v", bson.D{{"$gte", 20}}}}, options.Find().SetSort(bson.D{{"v", 1}}))
		found, err := it.First(ctx).Wait()
		require.NoError(t, err)
		assert.Equal(t, 3, decodeItem(t, found).ID)

		found, err = coll.Find(bson.D{{"v", 99}}).First(ctx).Wait()
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("bad sort", func(t *testing.T) {
		t.Parallel()
		_, err := coll.Find(nil, options.Find().SetSort(bson.D{{"v", "up"}})).All(ctx).Wait()
		assert.True(t, IsInvalidFilterError(err), "unexpected error %v", err)
	})
}

func TestCollectionFindAndModify(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("update returns the requested image", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll, item{ID: 1, V: 1})
		inc := bson.D{{"$inc", bson.D{{"v", 1}}}}

		before, err := coll.FindOneAndUpdate(ctx, bson.D{{"_id", 1}}, inc).Wait()
		require.NoError(t, err)
		assert.Equal(t, 1, decodeItem(t, before).V)

		after, err := coll.FindOneAndUpdate(ctx, bson.D{{"_id", 1}}, inc,
			options.FindOneAndModify().SetReturnDocument(options.After)).Wait()
		require.NoError(t, err)
		assert.Equal(t, 3, decodeItem(t, after).V)
	})

	t.Run("update without match", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		doc, err := coll.FindOneAndUpdate(ctx, bson.D{{"_id", 1}}, bson.D{{"$set", bson.D{{"v", 1}}}}).Wait()
		require.NoError(t, err)
		assert.Nil(t, doc)
		assert.Equal(t, int64(0), countAll(t, coll, nil))
	})

	t.Run("upsert", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		set := bson.D{{"$set", bson.D{{"v", 1}}}}

		doc, err := coll.FindOneAndUpdate(ctx, bson.D{{"_id", 1}}, set,
			options.FindOneAndModify().SetUpsert(true)).Wait()
		require.NoError(t, err)
		assert.Nil(t, doc)
		assert.Equal(t, int64(1), countAll(t, coll, nil))

		doc, err = coll.FindOneAndUpdate(ctx, bson.D{{"_id", 2}}, set,
			options.FindOneAndModify().SetUpsert(true).SetReturnDocument(options.After)).Wait()
		require.NoError(t, err)
		assert.Equal(t, item{ID: 2, V: 1}, decodeItem(t, doc))
	})

	t.Run("sort selects the document", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll, item{ID: 1, V: 5}, item{ID: 2, V: 9})

		doc, err := coll.FindOneAndUpdate(ctx, nil, bson.D{{"$set", bson.D{{"name", "top"}}}},
			options.FindOneAndModify().SetSort(bson.D{{"v", -1}}).SetProjection(bson.D{{"v", 0}})).Wait()
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, []string{"_id"}, doc.Keys())
		assert.Equal(t, int64(1), countAll(t, coll, bson.D{{"_id", 2}, {"name", "top"}}))
	})

	t.Run("replace", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll, item{ID: 1, Name: "old", V: 3})

		before, err := coll.FindOneAndReplace(ctx, bson.D{{"_id", 1}}, bson.D{{"name", "new"}}).Wait()
		require.NoError(t, err)
		assert.Equal(t, item{ID: 1, Name: "old", V: 3}, decodeItem(t, before))

		found, err := coll.FindOne(ctx, bson.D{{"_id", 1}}).Wait()
		require.NoError(t, err)
		assert.Equal(t, item{ID: 1, Name: "new"}, decodeItem(t, found))

		_, err = coll.FindOneAndReplace(ctx, bson.D{{"_id", 1}}, bson.D{{"$set", bson.D{{"v", 1}}}}).Wait()
		assert.True(t, IsInvalidUpdateError(err), "unexpected error %v", err)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()
		coll := newTestCollection(t)
		seedItems(t, coll, item{ID: 1, Team: "red"}, item{ID: 2, Team: "blue"})

		doc, err := coll.FindOneAndDelete(ctx, bson.D{{"team", "blue"}}).Wait()
		require.NoError(t, err)
		assert.Equal(t, item{ID: 2, Team: "blue"}, decodeItem(t, doc))
		assert.Equal(t, int64(1), countAll(t, coll, nil))

		doc, err = coll.FindOneAndDelete(ctx, bson.D{{"team", "blue"}}).Wait()
		require.NoError(t, err)
		assert.Nil(t, doc)
	})
}

func TestCollectionConcurrentInserts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	coll := newTestCollection(t)

	const n = 25
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coll.InsertOne(ctx, item{ID: i}).Wait()
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(n), countAll(t, coll, nil))
}
