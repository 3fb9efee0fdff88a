// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Command mongofn runs a single collection operation against a remote mongo function service
// and prints the result as extended JSON.
//
//	mongofn -url http://127.0.0.1:8080 -app emulator -db shop -coll orders count '{"status":"open"}'
//	mongofn -db shop -coll orders insert '{"_id":1,"status":"open"}'
//	mongofn -db shop -coll orders -sort '{"_id":-1}' -limit 5 find
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ikmak/mongo-functions-go/mongo"
	"github.com/ikmak/mongo-functions-go/mongo/options"
	"github.com/ikmak/mongo-functions-go/x/functions"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/pretty"
	"go.mongodb.org/mongo-driver/bson"
)

const usage = `usage: mongofn [flags] <operation> [json arguments]

operations:
  count [filter]
  insert <document> [document...]
  find [filter]
  findone [filter]
  update <filter> <update>
  delete <filter>
  findoneandupdate <filter> <update>
  findoneandreplace <filter> <replacement>
  findoneanddelete <filter>

flags:
`

type cli struct {
	url     string
	app     string
	token   string
	service string
	db      string
	coll    string
	timeout time.Duration
	many    bool
	upsert  bool
	after   bool
	limit   int64
	sort    string
	project string
	color   bool
	verbose bool
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "mongofn:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var c cli
	fs := flag.NewFlagSet("mongofn", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&c.url, "url", "http://127.0.0.1:8080", "base URL of the function service")
	fs.StringVar(&c.app, "app", "emulator", "client app id")
	fs.StringVar(&c.token, "token", os.Getenv("MONGOFN_TOKEN"), "bearer token, defaults to $MONGOFN_TOKEN")
	fs.StringVar(&c.service, "service", options.DefaultServiceName, "name of the mongo service")
	fs.StringVar(&c.db, "db", "test", "database name")
	fs.StringVar(&c.coll, "coll", "test", "collection name")
	fs.DurationVar(&c.timeout, "timeout", 30*time.Second, "timeout of the operation")
	fs.BoolVar(&c.many, "many", false, "update or delete every matching document")
	fs.BoolVar(&c.upsert, "upsert", false, "insert a document when nothing matches")
	fs.BoolVar(&c.after, "after", false, "return the document after the modification")
	fs.Int64Var(&c.limit, "limit", 0, "maximum number of documents to find or count")
	fs.StringVar(&c.sort, "sort", "", "sort document")
	fs.StringVar(&c.project, "project", "", "projection document")
	fs.BoolVar(&c.color, "color", false, "colorize the output")
	fs.BoolVar(&c.verbose, "v", false, "log function calls to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing operation")
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetLevel(logrus.WarnLevel)
	if c.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	var tokens functions.TokenSource
	if c.token != "" {
		tokens = functions.StaticToken(c.token)
	}
	transport, err := functions.NewHTTPTransport(functions.HTTPOptions{
		BaseURL: c.url,
		AppID:   c.app,
		Tokens:  tokens,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	client := mongo.NewClient(transport, options.Client().
		SetServiceName(c.service).
		SetCallTimeout(c.timeout).
		SetLogger(logger))
	defer client.Disconnect(ctx)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	coll := client.Database(c.db).Collection(c.coll)
	out, err := c.execute(ctx, coll, fs.Arg(0), fs.Args()[1:])
	if err != nil {
		return err
	}
	return c.print(stdout, out)
}

func (c *cli) execute(ctx context.Context, coll *mongo.Collection, op string, args []string) (interface{}, error) {
	docs, err := parseDocs(args)
	if err != nil {
		return nil, err
	}
	arg := func(i int) bson.D {
		if i < len(docs) {
			return docs[i]
		}
		return nil
	}
	need := func(n int) error {
		if len(docs) < n {
			return errors.Errorf("%s expects %d json arguments, got %d", op, n, len(docs))
		}
		return nil
	}

	switch op {
	case "count":
		opts := options.Count()
		if c.limit > 0 {
			opts.SetLimit(c.limit)
		}
		n, err := coll.Count(ctx, arg(0), opts).Get(ctx)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "count", Value: n}}, nil
	case "insert":
		if err := need(1); err != nil {
			return nil, err
		}
		if len(docs) == 1 {
			res, err := coll.InsertOne(ctx, docs[0]).Get(ctx)
			if err != nil {
				return nil, err
			}
			return bson.D{{Key: "insertedId", Value: res.InsertedID}}, nil
		}
		many := make([]interface{}, 0, len(docs))
		for _, d := range docs {
			many = append(many, d)
		}
		res, err := coll.InsertMany(ctx, many).Get(ctx)
		if err != nil {
			return nil, err
		}
		ids := make(bson.A, len(res.InsertedIDs))
		for i, id := range res.InsertedIDs {
			ids[i] = id
		}
		return bson.D{{Key: "insertedIds", Value: ids}}, nil
	case "find", "findone":
		opts, err := c.findOptions()
		if err != nil {
			return nil, err
		}
		if op == "findone" {
			return coll.FindOne(ctx, arg(0), opts).Get(ctx)
		}
		return coll.Find(arg(0), opts).All(ctx).Get(ctx)
	case "update":
		if err := need(2); err != nil {
			return nil, err
		}
		opts := options.Update().SetUpsert(c.upsert)
		update := coll.UpdateOne
		if c.many {
			update = coll.UpdateMany
		}
		res, err := update(ctx, docs[0], docs[1], opts).Get(ctx)
		if err != nil {
			return nil, err
		}
		out := bson.D{
			{Key: "matchedCount", Value: res.MatchedCount},
			{Key: "modifiedCount", Value: res.ModifiedCount},
		}
		if res.UpsertedID != nil {
			out = append(out, bson.E{Key: "upsertedId", Value: res.UpsertedID})
		}
		return out, nil
	case "delete":
		if err := need(1); err != nil {
			return nil, err
		}
		del := coll.DeleteOne
		if c.many {
			del = coll.DeleteMany
		}
		res, err := del(ctx, docs[0]).Get(ctx)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "deletedCount", Value: res.DeletedCount}}, nil
	case "findoneandupdate", "findoneandreplace":
		if err := need(2); err != nil {
			return nil, err
		}
		opts, err := c.modifyOptions()
		if err != nil {
			return nil, err
		}
		if op == "findoneandreplace" {
			return coll.FindOneAndReplace(ctx, docs[0], docs[1], opts).Get(ctx)
		}
		return coll.FindOneAndUpdate(ctx, docs[0], docs[1], opts).Get(ctx)
	case "findoneanddelete":
		if err := need(1); err != nil {
			return nil, err
		}
		opts, err := c.modifyOptions()
		if err != nil {
			return nil, err
		}
		return coll.FindOneAndDelete(ctx, docs[0], opts).Get(ctx)
	}
	return nil, errors.Errorf("unknown operation %q", op)
}

func (c *cli) findOptions() (*options.FindOptions, error) {
	opts := options.Find()
	if c.limit > 0 {
		opts.SetLimit(c.limit)
	}
	if c.sort != "" {
		s, err := parseDoc(c.sort)
		if err != nil {
			return nil, errors.Wrap(err, "-sort")
		}
		opts.SetSort(s)
	}
	if c.project != "" {
		p, err := parseDoc(c.project)
		if err != nil {
			return nil, errors.Wrap(err, "-project")
		}
		opts.SetProjection(p)
	}
	return opts, nil
}

func (c *cli) modifyOptions() (*options.FindOneAndModifyOptions, error) {
	opts := options.FindOneAndModify().SetUpsert(c.upsert)
	if c.after {
		opts.SetReturnDocument(options.After)
	}
	if c.sort != "" {
		s, err := parseDoc(c.sort)
		if err != nil {
			return nil, errors.Wrap(err, "-sort")
		}
		opts.SetSort(s)
	}
	if c.project != "" {
		p, err := parseDoc(c.project)
		if err != nil {
			return nil, errors.Wrap(err, "-project")
		}
		opts.SetProjection(p)
	}
	return opts, nil
}

func parseDoc(s string) (bson.D, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON([]byte(s), false, &d); err != nil {
		return nil, errors.Wrapf(err, "invalid json document %q", s)
	}
	return d, nil
}

func parseDocs(args []string) ([]bson.D, error) {
	docs := make([]bson.D, 0, len(args))
	for _, a := range args {
		d, err := parseDoc(a)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (c *cli) print(w io.Writer, v interface{}) error {
	b, err := bson.MarshalExtJSON(bson.D{{Key: "result", Value: v}}, false, false)
	if err != nil {
		return errors.Wrap(err, "cannot render result")
	}
	b = pretty.Pretty(b)
	if c.color {
		b = pretty.Color(b, nil)
	}
	_, err = w.Write(b)
	return err
}
