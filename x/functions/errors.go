// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package functions

import (
	"bytes"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Error codes reported by the function service.
const (
	CodeUnknown             = "Unknown"
	CodeFunctionNotFound    = "FunctionNotFound"
	CodeServiceNotFound     = "ServiceNotFound"
	CodeArgumentsNotAllowed = "ArgumentsNotAllowed"
	CodeInvalidSession      = "InvalidSession"
	CodeMongoDBError        = "MongoDBError"
	CodeDuplicateKey        = "DuplicateKey"
	CodeAppNotFound         = "AppNotFound"
	CodeInternalServerError = "InternalServerError"
)

// Kinds of malformed requests, reported in the error_details of a ServiceError.
const (
	KindInvalidFilter = "InvalidFilter"
	KindInvalidUpdate = "InvalidUpdate"
)

// ServiceError is an error reported by the function service itself. Index is the position
// of the offending argument element when the service reports one, and -1 otherwise.
type ServiceError struct {
	Code       string
	Message    string
	Link       string
	Index      int
	// Kind is KindInvalidFilter or KindInvalidUpdate when the service rejected the request
	// as malformed.
	Kind       string
	StatusCode int
}

// NewServiceError creates a ServiceError that does not name an argument position.
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, Index: -1}
}

func (e *ServiceError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("(%s) %s", e.Code, e.Message)
}

type wireError struct {
	Error     string `bson:"error"`
	ErrorCode string `bson:"error_code"`
	Link      string `bson:"link,omitempty"`
	Details   *struct {
		Index *int64 `bson:"index,omitempty"`
		Kind  string `bson:"kind,omitempty"`
	} `bson:"error_details,omitempty"`
}

// DecodeServiceError parses an error body. A body that is not a recognized error document is
// reported with CodeUnknown and the raw text as the message.
func DecodeServiceError(status int, body []byte) *ServiceError {
	trimmed := bytes.TrimSpace(body)
	var we wireError
	if len(trimmed) == 0 || bson.UnmarshalExtJSON(trimmed, false, &we) != nil || (we.Error == "" && we.ErrorCode == "") {
		msg := strings.TrimSpace(string(trimmed))
		if msg == "" {
			msg = fmt.Sprintf("function service responded with status %d", status)
		}
		return &ServiceError{Code: CodeUnknown, Message: msg, Index: -1, StatusCode: status}
	}
	se := &ServiceError{Code: we.ErrorCode, Message: we.Error, Link: we.Link, Index: -1, StatusCode: status}
	if se.Code == "" {
		se.Code = CodeUnknown
	}
	if we.Details != nil && we.Details.Index != nil {
		se.Index = int(*we.Details.Index)
	}
	if we.Details != nil {
		se.Kind = we.Details.Kind
	}
	return se
}

// EncodeServiceError renders e as the error document the service sends.
func EncodeServiceError(e *ServiceError) ([]byte, error) {
	doc := bson.D{{Key: "error", Value: e.Message}, {Key: "error_code", Value: e.Code}}
	if e.Link != "" {
		doc = append(doc, bson.E{Key: "link", Value: e.Link})
	}
	var details bson.D
	if e.Index >= 0 {
		details = append(details, bson.E{Key: "index", Value: int64(e.Index)})
	}
	if e.Kind != "" {
		details = append(details, bson.E{Key: "kind", Value: e.Kind})
	}
	if len(details) > 0 {
		doc = append(doc, bson.E{Key: "error_details", Value: details})
	}
	return bson.MarshalExtJSON(doc, false, false)
}

// TransportError wraps a failure to deliver a call or to receive its response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("function transport error: %v", e.Err)
	}
	return fmt.Sprintf("function transport error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }
