// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package operation encodes collection operations as calls of the remote mongo service
// functions and decodes their replies.
package operation

import (
	"github.com/ikmak/mongo-functions-go/document"
	"github.com/ikmak/mongo-functions-go/x/functions"
	"go.mongodb.org/mongo-driver/bson"
)

// Names of the remote functions.
const (
	FuncCount             = "count"
	FuncInsertOne         = "insertOne"
	FuncInsertMany        = "insertMany"
	FuncDeleteOne         = "deleteOne"
	FuncDeleteMany        = "deleteMany"
	FuncUpdateOne         = "updateOne"
	FuncUpdateMany        = "updateMany"
	FuncFind              = "find"
	FuncFindOne           = "findOne"
	FuncFindOneAndUpdate  = "findOneAndUpdate"
	FuncFindOneAndReplace = "findOneAndReplace"
	FuncFindOneAndDelete  = "findOneAndDelete"
)

// Namespace names a collection.
type Namespace struct {
	DB         string
	Collection string
}

// FullName returns the namespace as "db.collection".
func (ns Namespace) FullName() string { return ns.DB + "." + ns.Collection }

// Operation is a single remote function call with one argument document.
type Operation interface {
	Name() string
	Arguments() document.Doc
}

// Request builds the function request for op on service.
func Request(service string, op Operation) *functions.Request {
	return &functions.Request{
		Service:   service,
		Name:      op.Name(),
		Arguments: bson.A{op.Arguments()},
	}
}

func base(ns Namespace) document.Doc {
	return document.Doc{
		{Key: "database", Value: document.String(ns.DB)},
		{Key: "collection", Value: document.String(ns.Collection)},
	}
}

func query(d document.Doc) document.Val {
	if d == nil {
		d = document.Doc{}
	}
	return document.Document(d)
}

// Count counts the documents matching Query.
type Count struct {
	NS    Namespace
	Query document.Doc
	Limit *int64
}

// Name implements Operation.
func (c *Count) Name() string { return FuncCount }

// Arguments implements Operation.
func (c *Count) Arguments() document.Doc {
	args := base(c.NS).Append("query", query(c.Query))
	if c.Limit != nil {
		args = args.Append("limit", document.Int64(*c.Limit))
	}
	return args
}

// InsertOne inserts Document.
type InsertOne struct {
	NS       Namespace
	Document document.Doc
}

// Name implements Operation.
func (i *InsertOne) Name() string { return FuncInsertOne }

// Arguments implements Operation.
func (i *InsertOne) Arguments() document.Doc {
	return base(i.NS).Append("document", document.Document(i.Document))
}

// InsertMany inserts Documents in order.
type InsertMany struct {
	NS        Namespace
	Documents []document.Doc
}

// Name implements Operation.
func (i *InsertMany) Name() string { return FuncInsertMany }

// Arguments implements Operation.
func (i *InsertMany) Arguments() document.Doc {
	docs := make(document.Arr, 0, len(i.Documents))
	for _, d := range i.Documents {
		docs = append(docs, document.Document(d))
	}
	return base(i.NS).Append("documents", document.Array(docs))
}

// Delete removes the first or every document matching Query.
type Delete struct {
	NS    Namespace
	Query document.Doc
	Many  bool
}

// Name implements Operation.
func (d *Delete) Name() string {
	if d.Many {
		return FuncDeleteMany
	}
	return FuncDeleteOne
}

// Arguments implements Operation.
func (d *Delete) Arguments() document.Doc {
	return base(d.NS).Append("query", query(d.Query))
}

// Update modifies or replaces the first or every document matching Query.
type Update struct {
	NS     Namespace
	Query  document.Doc
	Update document.Doc
	Upsert *bool
	Many   bool
}

// Name implements Operation.
func (u *Update) Name() string {
	if u.Many {
		return FuncUpdateMany
	}
	return FuncUpdateOne
}

// Arguments implements Operation.
func (u *Update) Arguments() document.Doc {
	args := base(u.NS).
		Append("query", query(u.Query)).
		Append("update", query(u.Update))
	if u.Upsert != nil {
		args = args.Append("upsert", document.Boolean(*u.Upsert))
	}
	return args
}

// Find returns the documents matching Query, or only the first one when One is set.
type Find struct {
	NS         Namespace
	Query      document.Doc
	Projection document.Doc
	Sort       document.Doc
	Limit      *int64
	One        bool
}

// Name implements Operation.
func (f *Find) Name() string {
	if f.One {
		return FuncFindOne
	}
	return FuncFind
}

// Arguments implements Operation.
func (f *Find) Arguments() document.Doc {
	args := base(f.NS).Append("query", query(f.Query))
	if f.Projection != nil {
		args = args.Append("project", document.Document(f.Projection))
	}
	if f.Sort != nil {
		args = args.Append("sort", document.Document(f.Sort))
	}
	if f.Limit != nil {
		args = args.Append("limit", document.Int64(*f.Limit))
	}
	return args
}

// FindAndModifyKind selects the remote findOneAnd* function.
type FindAndModifyKind int

// The findOneAnd* variants.
const (
	FindAndUpdate FindAndModifyKind = iota
	FindAndReplace
	FindAndDelete
)

// FindAndModify atomically updates, replaces or deletes a single document and returns it.
type FindAndModify struct {
	NS                Namespace
	Kind              FindAndModifyKind
	Query             document.Doc
	Update            document.Doc
	Upsert            *bool
	ReturnNewDocument *bool
	Projection        document.Doc
	Sort              document.Doc
}

// Name implements Operation.
func (f *FindAndModify) Name() string {
	switch f.Kind {
	case FindAndReplace:
		return FuncFindOneAndReplace
	case FindAndDelete:
		return FuncFindOneAndDelete
	default:
		return FuncFindOneAndUpdate
	}
}

// Arguments implements Operation.
func (f *FindAndModify) Arguments() document.Doc {
	args := base(f.NS).Append("query", query(f.Query))
	if f.Kind != FindAndDelete {
		args = args.Append("update", query(f.Update))
		if f.Upsert != nil {
			args = args.Append("upsert", document.Boolean(*f.Upsert))
		}
		if f.ReturnNewDocument != nil {
			args = args.Append("returnNewDocument", document.Boolean(*f.ReturnNewDocument))
		}
	}
	if f.Projection != nil {
		args = args.Append("project", document.Document(f.Projection))
	}
	if f.Sort != nil {
		args = args.Append("sort", document.Document(f.Sort))
	}
	return args
}
