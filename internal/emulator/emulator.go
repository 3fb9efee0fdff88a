// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package emulator implements the remote mongo function service locally. It understands the
// functions the collection client calls, evaluates them against a pluggable Store, and
// answers with the same reply and error shapes as the hosted service.
//
// An Emulator is also a functions.Transport, so a client can be pointed at it directly:
//
//	emu, _ := emulator.New()
//	client := mongo.NewClient(emu)
package emulator

import (
	"context"
	"io"
	"time"

	"github.com/ikmak/mongo-functions-go/document"
	"github.com/ikmak/mongo-functions-go/x/functions"
	"github.com/ikmak/mongo-functions-go/x/functions/operation"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

// DefaultServiceName is the service name the emulator answers to unless configured
// otherwise.
const DefaultServiceName = "mongodb-atlas"

type handler func(ns string, args arguments) (interface{}, error)

// Emulator routes function calls to an Engine.
type Emulator struct {
	engine   *Engine
	service  string
	logger   logrus.FieldLogger
	handlers map[string]handler
}

var _ functions.Transport = (*Emulator)(nil)

type config struct {
	store    Store
	storeCfg *StoreConfig
	service  string
	logger   logrus.FieldLogger
}

// Option configures an Emulator.
type Option func(*config)

// WithStore uses store instead of a new MemoryStore.
func WithStore(store Store) Option { return func(c *config) { c.store = store } }

// WithStoreConfig opens the storage engine described by cfg.
func WithStoreConfig(cfg StoreConfig) Option { return func(c *config) { c.storeCfg = &cfg } }

// WithServiceName sets the service name calls must address.
func WithServiceName(name string) Option { return func(c *config) { c.service = name } }

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l logrus.FieldLogger) Option { return func(c *config) { c.logger = l } }

// New creates an Emulator.
func New(opts ...Option) (*Emulator, error) {
	cfg := config{service: DefaultServiceName}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.store == nil {
		sc := StoreConfig{Engine: EngineMemory}
		if cfg.storeCfg != nil {
			sc = *cfg.storeCfg
		}
		store, err := OpenStore(sc)
		if err != nil {
			return nil, err
		}
		cfg.store = store
	}
	if cfg.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.logger = l
	}

	e := &Emulator{
		engine:  NewEngine(cfg.store),
		service: cfg.service,
		logger:  cfg.logger,
	}
	e.handlers = map[string]handler{
		operation.FuncCount:             e.count,
		operation.FuncInsertOne:         e.insertOne,
		operation.FuncInsertMany:        e.insertMany,
		operation.FuncDeleteOne:         e.deleter(false),
		operation.FuncDeleteMany:        e.deleter(true),
		operation.FuncUpdateOne:         e.updater(false),
		operation.FuncUpdateMany:        e.updater(true),
		operation.FuncFind:              e.find,
		operation.FuncFindOne:           e.findOne,
		operation.FuncFindOneAndUpdate:  e.findAndModify(operation.FindAndUpdate),
		operation.FuncFindOneAndReplace: e.findAndModify(operation.FindAndReplace),
		operation.FuncFindOneAndDelete:  e.findAndModify(operation.FindAndDelete),
	}
	return e, nil
}

// ServiceName returns the service name calls must address.
func (e *Emulator) ServiceName() string { return e.service }

// Engine returns the engine calls are routed to.
func (e *Emulator) Engine() *Engine { return e.engine }

// Close closes the store.
func (e *Emulator) Close() error { return e.engine.Close() }

// Call executes a decoded function call. The result is a value the bson package can encode;
// failures are *functions.ServiceError.
func (e *Emulator) Call(ctx context.Context, req *functions.RawRequest) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	log := e.logger.WithFields(logrus.Fields{"service": req.Service, "function": req.Name})

	res, err := e.call(req)
	if err != nil {
		log.WithError(err).WithField("duration", time.Since(start)).Debug("function call failed")
		return nil, err
	}
	log.WithField("duration", time.Since(start)).Debug("function call succeeded")
	return res, nil
}

func (e *Emulator) call(req *functions.RawRequest) (interface{}, error) {
	if req.Service != e.service {
		return nil, functions.NewServiceError(functions.CodeServiceNotFound, "service not found: '"+req.Service+"'")
	}
	h, ok := e.handlers[req.Name]
	if !ok {
		return nil, functions.NewServiceError(functions.CodeFunctionNotFound, "function not found: '"+req.Name+"'")
	}
	if len(req.Arguments) != 1 {
		return nil, argError("%s expects exactly one argument document, got %d", req.Name, len(req.Arguments))
	}
	doc, err := document.ReadDoc(req.Arguments[0])
	if err != nil {
		return nil, argError("invalid argument document: %v", err)
	}
	args := arguments(doc)
	db, err := args.str("database")
	if err != nil {
		return nil, err
	}
	coll, err := args.str("collection")
	if err != nil {
		return nil, err
	}

	res, err := h(operation.Namespace{DB: db, Collection: coll}.FullName(), args)
	if err != nil {
		return nil, toServiceError(err)
	}
	return res, nil
}

func toServiceError(err error) error {
	var se *functions.ServiceError
	if errors.As(err, &se) {
		return se
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		return &functions.ServiceError{Code: functions.CodeMongoDBError, Message: ce.Message, Index: ce.Index, Kind: ce.Kind}
	}
	return functions.NewServiceError(functions.CodeInternalServerError, err.Error())
}

// RoundTrip implements functions.Transport. The call goes through the same extended JSON
// encoding as an HTTP round trip.
func (e *Emulator) RoundTrip(ctx context.Context, req *functions.Request) (bson.RawValue, error) {
	body, err := functions.EncodeRequest(req)
	if err != nil {
		return bson.RawValue{}, err
	}
	raw, err := functions.DecodeRequest(body)
	if err != nil {
		return bson.RawValue{}, argError("%v", err)
	}
	res, err := e.Call(ctx, raw)
	if err != nil {
		return bson.RawValue{}, err
	}
	reply, err := functions.EncodeResponse(res)
	if err != nil {
		return bson.RawValue{}, err
	}
	return functions.DecodeResponse(reply)
}

func (e *Emulator) count(ns string, args arguments) (interface{}, error) {
	query, err := args.doc("query", false)
	if err != nil {
		return nil, err
	}
	limit, err := args.int64("limit")
	if err != nil {
		return nil, err
	}
	return e.engine.Count(ns, query, limit)
}

func (e *Emulator) insertOne(ns string, args arguments) (interface{}, error) {
	doc, err := args.doc("document", true)
	if err != nil {
		return nil, err
	}
	id, err := e.engine.InsertOne(ns, doc)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "insertedId", Value: id}}, nil
}

func (e *Emulator) insertMany(ns string, args arguments) (interface{}, error) {
	docs, err := args.docs("documents")
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, argError("argument %q must not be empty", "documents")
	}
	ids, err := e.engine.InsertMany(ns, docs)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "insertedIds", Value: ids}}, nil
}

func (e *Emulator) deleter(many bool) handler {
	return func(ns string, args arguments) (interface{}, error) {
		query, err := args.doc("query", false)
		if err != nil {
			return nil, err
		}
		n, err := e.engine.Delete(ns, query, many)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "deletedCount", Value: n}}, nil
	}
}

func (e *Emulator) updater(many bool) handler {
	return func(ns string, args arguments) (interface{}, error) {
		query, err := args.doc("query", false)
		if err != nil {
			return nil, err
		}
		update, err := args.doc("update", true)
		if err != nil {
			return nil, err
		}
		upsert, err := args.boolean("upsert")
		if err != nil {
			return nil, err
		}
		res, err := e.engine.Update(ns, query, update, upsert, many)
		if err != nil {
			return nil, err
		}
		reply := bson.D{
			{Key: "matchedCount", Value: res.Matched},
			{Key: "modifiedCount", Value: res.Modified},
		}
		if res.UpsertedID != nil {
			reply = append(reply, bson.E{Key: "upsertedId", Value: *res.UpsertedID})
		}
		return reply, nil
	}
}

func (e *Emulator) findSpec(args arguments) (FindSpec, error) {
	var (
		spec FindSpec
		err  error
	)
	if spec.Filter, err = args.doc("query", false); err != nil {
		return spec, err
	}
	if spec.Projection, err = args.doc("project", false); err != nil {
		return spec, err
	}
	if spec.Sort, err = args.doc("sort", false); err != nil {
		return spec, err
	}
	spec.Limit, err = args.int64("limit")
	return spec, err
}

func (e *Emulator) find(ns string, args arguments) (interface{}, error) {
	spec, err := e.findSpec(args)
	if err != nil {
		return nil, err
	}
	docs, err := e.engine.Find(ns, spec)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (e *Emulator) findOne(ns string, args arguments) (interface{}, error) {
	spec, err := e.findSpec(args)
	if err != nil {
		return nil, err
	}
	spec.Limit = 1
	docs, err := e.engine.Find(ns, spec)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (e *Emulator) findAndModify(kind operation.FindAndModifyKind) handler {
	return func(ns string, args arguments) (interface{}, error) {
		spec := FindAndModifySpec{
			Remove:  kind == operation.FindAndDelete,
			Replace: kind == operation.FindAndReplace,
		}
		var err error
		if spec.Filter, err = args.doc("query", false); err != nil {
			return nil, err
		}
		if spec.Projection, err = args.doc("project", false); err != nil {
			return nil, err
		}
		if spec.Sort, err = args.doc("sort", false); err != nil {
			return nil, err
		}
		if !spec.Remove {
			if spec.Update, err = args.doc("update", true); err != nil {
				return nil, err
			}
			if spec.Upsert, err = args.boolean("upsert"); err != nil {
				return nil, err
			}
			if spec.ReturnNew, err = args.boolean("returnNewDocument"); err != nil {
				return nil, err
			}
		}
		doc, err := e.engine.FindAndModify(ns, spec)
		if err != nil || doc == nil {
			return nil, err
		}
		return *doc, nil
	}
}
