// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"strings"

	"github.com/ikmak/mongo-functions-go/document"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// transformDocument converts a filter, update, projection or document into a Doc. A nil
// value becomes an empty document.
func transformDocument(v interface{}) (document.Doc, error) {
	d, err := document.Marshal(v)
	if err != nil {
		if errors.Is(err, document.ErrNilDocument) {
			return nil, ErrNilDocument
		}
		return nil, errors.Wrap(err, "cannot transform value into a document")
	}
	return d, nil
}

// transformOptional is transformDocument for optional arguments: a nil value stays nil.
func transformOptional(v interface{}) (document.Doc, error) {
	if v == nil {
		return nil, nil
	}
	return transformDocument(v)
}

// ensureID returns doc with an _id, generating an ObjectID at the front when it has none, and
// the _id value.
func ensureID(doc document.Doc) (document.Doc, interface{}) {
	if id, ok := doc.ID(); ok {
		return doc, id.Interface()
	}
	oid := primitive.NewObjectID()
	return doc.Prepend("_id", document.ObjectID(oid)), oid
}

// checkUpdate rejects update documents that mix update operators and replacement fields.
func checkUpdate(update document.Doc) error {
	var dollar, plain bool
	for _, elem := range update {
		if strings.HasPrefix(elem.Key, "$") {
			dollar = true
		} else {
			plain = true
		}
	}
	if dollar && plain {
		return invalidUpdate("update document cannot mix update operators and replacement fields")
	}
	return nil
}

// ensureNoDollarKey rejects replacement documents holding update operators.
func ensureNoDollarKey(replacement document.Doc) error {
	for _, elem := range replacement {
		if strings.HasPrefix(elem.Key, "$") {
			return invalidUpdate("replacement document cannot contain keys beginning with '$'")
		}
	}
	return nil
}
