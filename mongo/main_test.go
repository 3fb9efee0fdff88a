// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"context"
	"testing"

	"github.com/ikmak/mongo-functions-go/internal/emulator"
	"github.com/ikmak/mongo-functions-go/mongo/options"
	"github.com/stretchr/testify/require"
)

// item is the document shape used by most tests.
type item struct {
	ID   int    `bson:"_id"`
	Name string `bson:"name,omitempty"`
	Team string `bson:"team,omitempty"`
	V    int    `bson:"v,omitempty"`
}

func newTestClient(t *testing.T, opts ...*options.ClientOptions) *Client {
	t.Helper()
	em, err := emulator.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = em.Close() })

	c := NewClient(em, opts...)
	t.Cleanup(func() { _ = c.Disconnect(context.Background()) })
	return c
}

func newTestCollection(t *testing.T) *Collection {
	t.Helper()
	return newTestClient(t).Database("db").Collection("coll")
}

func seedItems(t *testing.T, coll *Collection, items ...item) {
	t.Helper()
	docs := make([]interface{}, 0, len(items))
	for _, it := range items {
		docs = append(docs, it)
	}
	_, err := coll.InsertMany(context.Background(), docs).Wait()
	require.NoError(t, err)
}

func countAll(t *testing.T, coll *Collection, filter interface{}) int64 {
	t.Helper()
	n, err := coll.Count(context.Background(), filter).Wait()
	require.NoError(t, err)
	return n
}
