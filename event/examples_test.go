// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package event_test

import (
	"context"
	"log"
	"sync"

	"github.com/ikmak/mongo-functions-go/event"
	"github.com/ikmak/mongo-functions-go/internal/emulator"
	"github.com/ikmak/mongo-functions-go/mongo"
	"github.com/ikmak/mongo-functions-go/mongo/options"
	"go.mongodb.org/mongo-driver/bson"
)

// FunctionMonitor represents a monitor that is triggered for different events.
func ExampleFunctionMonitor() {
	// Calls run concurrently, so the bookkeeping needs a concurrent map.
	var started sync.Map
	fnMonitor := &event.FunctionMonitor{
		Started: func(_ context.Context, evt *event.FunctionStartedEvent) {
			started.Store(evt.RequestID, evt.Arguments)
		},
		Succeeded: func(_ context.Context, evt *event.FunctionSucceededEvent) {
			args, _ := started.LoadAndDelete(evt.RequestID)
			log.Printf("Function: %s Arguments: %v Reply: %v\n", evt.FunctionName, args, evt.Reply)
		},
		Failed: func(_ context.Context, evt *event.FunctionFailedEvent) {
			args, _ := started.LoadAndDelete(evt.RequestID)
			log.Printf("Function: %s Arguments: %v Failure: %v\n", evt.FunctionName, args, evt.Failure)
		},
	}

	emu, err := emulator.New()
	if err != nil {
		log.Fatal(err)
	}
	client := mongo.NewClient(emu, options.Client().SetMonitor(fnMonitor))
	defer func() {
		if err = client.Disconnect(context.TODO()); err != nil {
			log.Fatal(err)
		}
	}()

	coll := client.Database("test").Collection("people")
	if _, err = coll.InsertOne(context.TODO(), bson.D{{"name", "ada"}}).Get(context.TODO()); err != nil {
		log.Fatal(err)
	}
}
