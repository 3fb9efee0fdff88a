// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"testing"

	"github.com/ikmak/mongo-functions-go/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTransformDocument(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   interface{}
		keys []string
	}{
		{"nil", nil, []string{}},
		{"bson.D keeps order", bson.D{{"z", 1}, {"a", 2}}, []string{"z", "a"}},
		{"struct", item{ID: 1, Name: "x"}, []string{"_id", "name"}},
		{"document", document.New(document.Elem{Key: "k", Value: document.Null()}), []string{"k"}},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d, err := transformDocument(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.keys, d.Keys())
		})
	}

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		var nilDoc *document.Doc
		_, err := transformDocument(nilDoc)
		assert.Equal(t, ErrNilDocument, err)

		_, err = transformDocument(42)
		assert.Error(t, err)
	})

	t.Run("optional", func(t *testing.T) {
		t.Parallel()
		d, err := transformOptional(nil)
		require.NoError(t, err)
		assert.Nil(t, d)
	})
}

func TestEnsureID(t *testing.T) {
	t.Parallel()

	d := document.New(document.Elem{Key: "name", Value: document.String("x")})
	withID, id := ensureID(d)
	oid, ok := id.(primitive.ObjectID)
	require.True(t, ok)
	assert.False(t, oid.IsZero())
	assert.Equal(t, []string{"_id", "name"}, withID.Keys())
	assert.Equal(t, []string{"name"}, d.Keys())

	same, id := ensureID(withID)
	assert.Equal(t, oid, id)
	assert.Equal(t, withID, same)
}

func TestCheckUpdate(t *testing.T) {
	t.Parallel()

	mustDoc := func(v interface{}) document.Doc {
		d, err := document.Marshal(v)
		require.NoError(t, err)
		return d
	}

	assert.NoError(t, checkUpdate(mustDoc(bson.D{{"$set", bson.D{{"a", 1}}}, {"$inc", bson.D{{"b", 1}}}})))
	assert.NoError(t, checkUpdate(mustDoc(bson.D{{"a", 1}})))
	assert.NoError(t, checkUpdate(nil))

	err := checkUpdate(mustDoc(bson.D{{"$set", bson.D{{"a", 1}}}, {"b", 2}}))
	assert.True(t, IsInvalidUpdateError(err))

	assert.NoError(t, ensureNoDollarKey(mustDoc(bson.D{{"a", 1}})))
	err = ensureNoDollarKey(mustDoc(bson.D{{"$set", bson.D{{"a", 1}}}}))
	require.Error(t, err)
	assert.Equal(t, "replacement document cannot contain keys beginning with '$'", err.Error())
}
