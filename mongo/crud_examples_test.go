// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo_test

import (
	"context"
	"fmt"
	"log"

	"github.com/ikmak/mongo-functions-go/internal/emulator"
	"github.com/ikmak/mongo-functions-go/mongo"
	"github.com/ikmak/mongo-functions-go/mongo/options"
	"go.mongodb.org/mongo-driver/bson"
)

func ExampleCollection_InsertMany() {
	em, err := emulator.New()
	if err != nil {
		log.Fatal(err)
	}
	defer em.Close()

	ctx := context.Background()
	client := mongo.NewClient(em)
	defer client.Disconnect(ctx)
	coll := client.Database("inventory").Collection("fruit")

	res, err := coll.InsertMany(ctx, []interface{}{
		bson.D{{"_id", 1}, {"name", "apple"}, {"qty", 5}},
		bson.D{{"_id", 2}, {"name", "pear"}, {"qty", 0}},
		bson.D{{"_id", 3}, {"name", "plum"}, {"qty", 12}},
	}).Get(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("inserted:", len(res.InsertedIDs))

	n, err := coll.Count(ctx, bson.D{{"qty", bson.D{{"$gt", 0}}}}).Get(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("in stock:", n)

	_, err = coll.InsertOne(ctx, bson.D{{"_id", 1}, {"name", "apricot"}}).Get(ctx)
	fmt.Println("duplicate:", mongo.IsDuplicateKeyError(err))

	// Output:
	// inserted: 3
	// in stock: 2
	// duplicate: true
}

func ExampleCollection_Find() {
	em, err := emulator.New()
	if err != nil {
		log.Fatal(err)
	}
	defer em.Close()

	ctx := context.Background()
	client := mongo.NewClient(em)
	defer client.Disconnect(ctx)
	coll := client.Database("inventory").Collection("fruit")

	_, err = coll.InsertMany(ctx, []interface{}{
		bson.D{{"_id", 1}, {"name", "apple"}, {"qty", 5}},
		bson.D{{"_id", 2}, {"name", "pear"}, {"qty", 0}},
		bson.D{{"_id", 3}, {"name", "plum"}, {"qty", 12}},
	}).Get(ctx)
	if err != nil {
		log.Fatal(err)
	}

	cur := coll.Find(nil, options.Find().SetSort(bson.D{{"qty", -1}})).Iterator()
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var fruit struct {
			Name string `bson:"name"`
			Qty  int    `bson:"qty"`
		}
		if err := cur.Decode(&fruit); err != nil {
			log.Fatal(err)
		}
		fmt.Println(fruit.Name, fruit.Qty)
	}
	if err := cur.Err(); err != nil {
		log.Fatal(err)
	}

	// Output:
	// plum 12
	// apple 5
	// pear 0
}

func ExampleCollection_FindOneAndUpdate() {
	em, err := emulator.New()
	if err != nil {
		log.Fatal(err)
	}
	defer em.Close()

	ctx := context.Background()
	client := mongo.NewClient(em)
	defer client.Disconnect(ctx)
	coll := client.Database("app").Collection("counters")

	opts := options.FindOneAndModify().SetUpsert(true).SetReturnDocument(options.After)
	for i := 0; i < 3; i++ {
		doc, err := coll.FindOneAndUpdate(ctx, bson.D{{"_id", "visits"}}, bson.D{{"$inc", bson.D{{"n", 1}}}}, opts).Get(ctx)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(doc)
	}

	// Output:
	// {"_id":"visits","n":1}
	// {"_id":"visits","n":2}
	// {"_id":"visits","n":3}
}
