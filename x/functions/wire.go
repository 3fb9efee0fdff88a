// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package functions

import (
	"bytes"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Request is a single call of a named function on a named service.
type Request struct {
	Service   string `bson:"service"`
	Name      string `bson:"name"`
	Arguments bson.A `bson:"arguments"`
}

type wireRequest struct {
	Arguments bson.A `bson:"arguments"`
	Name      string `bson:"name"`
	Service   string `bson:"service"`
}

// EncodeRequest renders req as canonical extended JSON. Argument documents keep their key
// order.
func EncodeRequest(req *Request) ([]byte, error) {
	if req == nil {
		return nil, errors.New("cannot encode a nil request")
	}
	args := req.Arguments
	if args == nil {
		args = bson.A{}
	}
	b, err := bson.MarshalExtJSON(wireRequest{Arguments: args, Name: req.Name, Service: req.Service}, true, false)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot encode arguments of function %q", req.Name)
	}
	return b, nil
}

// RawRequest is a decoded request whose arguments are left as BSON documents.
type RawRequest struct {
	Service   string     `bson:"service"`
	Name      string     `bson:"name"`
	Arguments []bson.Raw `bson:"arguments"`
}

// DecodeRequest parses an extended JSON request body. Both canonical and relaxed forms are
// accepted.
func DecodeRequest(body []byte) (*RawRequest, error) {
	var req RawRequest
	if err := bson.UnmarshalExtJSON(body, false, &req); err != nil {
		return nil, errors.Wrap(err, "malformed function call")
	}
	if req.Name == "" {
		return nil, errors.New("function call is missing a name")
	}
	return &req, nil
}

var (
	envelopeOpen  = []byte(`{"r":`)
	envelopeClose = []byte(`}`)
)

// EncodeResponse renders v, which may be any BSON value including null, a number, or an
// array, as canonical extended JSON.
func EncodeResponse(v interface{}) ([]byte, error) {
	b, err := bson.MarshalExtJSON(bson.D{{Key: "r", Value: v}}, true, false)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode function result")
	}
	if !bytes.HasPrefix(b, envelopeOpen) || !bytes.HasSuffix(b, envelopeClose) {
		return nil, errors.Errorf("unexpected result encoding %q", b)
	}
	return b[len(envelopeOpen) : len(b)-len(envelopeClose)], nil
}

// DecodeResponse parses a response body holding a single extended JSON value. An empty body
// decodes to null.
func DecodeResponse(body []byte) (bson.RawValue, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return bson.RawValue{Type: bsontype.Null}, nil
	}
	wrapped := make([]byte, 0, len(body)+len(`{"result":}`))
	wrapped = append(wrapped, `{"result":`...)
	wrapped = append(wrapped, body...)
	wrapped = append(wrapped, '}')

	var out struct {
		Result bson.RawValue `bson:"result"`
	}
	if err := bson.UnmarshalExtJSON(wrapped, false, &out); err != nil {
		return bson.RawValue{}, errors.Wrap(err, "malformed function result")
	}
	if out.Result.Type == 0 {
		out.Result.Type = bsontype.Null
	}
	return out.Result, nil
}
