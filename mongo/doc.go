// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package mongo provides an asynchronous MongoDB collection API over a remote function
// service.
//
// Every operation is sent as a single call to a function of the remote mongo service, for
// example insertOne or findOneAndUpdate. Basic usage starts with creating a Client from a
// functions.Transport:
//
//	transport, err := functions.NewHTTPTransport(functions.HTTPOptions{
//	    BaseURL: "https://realm.mongodb.com",
//	    AppID:   "my-app-abcde",
//	    Tokens:  functions.StaticToken(accessToken),
//	})
//	if err != nil { log.Fatal(err) }
//	client := mongo.NewClient(transport)
//	defer client.Disconnect(context.TODO())
//
// The Database and Collection types can be used to access the remote collection:
//
//	collection := client.Database("baz").Collection("qux")
//
// Operations return immediately with a *future.Future that completes once the remote call
// ends:
//
//	res, err := collection.InsertOne(context.Background(), bson.M{"hello": "world"}).Get(ctx)
//	if err != nil { log.Fatal(err) }
//	id := res.InsertedID
//
// Find returns a FindIterable, which can be iterated with a cursor:
//
//	cur := collection.Find(bson.D{{"hello", "world"}}).Iterator()
//	defer cur.Close(context.Background())
//	for cur.Next(context.Background()) {
//	   var elem bson.M
//	   if err := cur.Decode(&elem); err != nil { log.Fatal(err) }
//	   // do something with elem....
//	}
//	if err := cur.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// Server failures are reported as *ServerError, or one of the more specific
// *DuplicateKeyError, *InvalidFilterError and *InvalidUpdateError. Failures to reach the
// service are reported as *TransportError.
package mongo
