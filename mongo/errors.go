// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ikmak/mongo-functions-go/document"
	"github.com/ikmak/mongo-functions-go/x/functions"
	"github.com/pkg/errors"
)

// ErrEmptySlice is returned when an empty slice is passed to a method that requires a
// non-empty slice.
var ErrEmptySlice = errors.New("must provide at least one element in input slice")

// ErrClientDisconnected is returned when a disconnected Client is used to run an operation.
var ErrClientDisconnected = errors.New("client is disconnected")

// ErrNilDocument is returned when a nil document is passed to a CRUD method.
var ErrNilDocument = document.ErrNilDocument

func replaceErrors(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, functions.ErrDispatcherClosed) {
		return ErrClientDisconnected
	}

	var te *functions.TransportError
	if errors.As(err, &te) {
		return &TransportError{Op: te.Op, Err: te.Err}
	}
	var se *functions.ServiceError
	if errors.As(err, &se) {
		return classifyServiceError(se)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Op: "call", Err: err}
	}
	return err
}

func classifyServiceError(se *functions.ServiceError) error {
	base := ServerError{Code: se.Code, Message: se.Message, Link: se.Link, Index: se.Index, Err: se}
	switch se.Kind {
	case functions.KindInvalidFilter:
		return &InvalidFilterError{ServerError: base}
	case functions.KindInvalidUpdate:
		return &InvalidUpdateError{ServerError: base}
	}
	msg := se.Message
	switch {
	case se.Code == functions.CodeDuplicateKey,
		strings.Contains(msg, "E11000"),
		strings.Contains(msg, "duplicate key"):
		return &DuplicateKeyError{ServerError: base}
	case containsAny(msg, invalidFilterMessages):
		return &InvalidFilterError{ServerError: base}
	case containsAny(msg, invalidUpdateMessages):
		return &InvalidUpdateError{ServerError: base}
	}
	return &base
}

// Message fragments of servers that do not report an error kind.
var (
	invalidFilterMessages = []string{
		"unknown top level operator",
		"unknown operator",
		"must be a nonempty array",
		"needs an array",
		"entries need to be full objects",
		"projection",
		"sort specification",
	}
	invalidUpdateMessages = []string{
		"Unknown modifier",
		"update document",
		"Modifiers operate on fields",
		"Cannot increment with non-numeric argument",
		"The update path",
		"must not contain update operators",
	}
)

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ServerError is a failure reported by the remote function service.
type ServerError struct {
	// Code is the error code reported by the service, e.g. "MongoDBError".
	Code    string
	Message string
	Link    string
	// Index is the position of the failing document of an InsertMany, or -1.
	Index int
	Err   error
}

func (e *ServerError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("(%s) %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServerError) Unwrap() error { return e.Err }

// DuplicateKeyError is returned when a write would store a second document with the same _id.
type DuplicateKeyError struct {
	ServerError
}

// Unwrap returns the ServerError.
func (e *DuplicateKeyError) Unwrap() error { return &e.ServerError }

// InvalidFilterError is returned when a filter, projection or sort is rejected.
type InvalidFilterError struct {
	ServerError
}

// Unwrap returns the ServerError.
func (e *InvalidFilterError) Unwrap() error { return &e.ServerError }

// InvalidUpdateError is returned when an update document is rejected.
type InvalidUpdateError struct {
	ServerError
}

// Unwrap returns the ServerError.
func (e *InvalidUpdateError) Unwrap() error { return &e.ServerError }

func invalidUpdate(msg string) *InvalidUpdateError {
	return &InvalidUpdateError{ServerError: ServerError{Message: msg, Index: -1}}
}

// TransportError is returned when the function service could not be reached or did not answer
// in time. The operation may or may not have been applied; it is never retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }

// BulkWriteError is returned from InsertMany when a document could not be inserted. Documents
// before Index were inserted; the ones from Index on were not.
type BulkWriteError struct {
	// InsertedIDs maps the indexes of the inserted documents to their _id fields.
	InsertedIDs map[int]interface{}
	// Index is the position of the document that failed, or -1 when it is not known.
	Index int
	Err   error
}

func (e *BulkWriteError) Error() string {
	var buf bytes.Buffer
	fmt.Fprint(&buf, "bulk write error: [")
	if e.Index >= 0 {
		fmt.Fprintf(&buf, "{index %d} ", e.Index)
	}
	fmt.Fprintf(&buf, "{%v}]", e.Err)
	return buf.String()
}

// Unwrap returns the error of the failed document.
func (e *BulkWriteError) Unwrap() error { return e.Err }

// IsDuplicateKeyError reports whether err, or an error it wraps, is a duplicate key error.
func IsDuplicateKeyError(err error) bool {
	var dke *DuplicateKeyError
	return errors.As(err, &dke)
}

// IsTransportError reports whether err, or an error it wraps, is a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsInvalidFilterError reports whether err, or an error it wraps, is an InvalidFilterError.
func IsInvalidFilterError(err error) bool {
	var ife *InvalidFilterError
	return errors.As(err, &ife)
}

// IsInvalidUpdateError reports whether err, or an error it wraps, is an InvalidUpdateError.
func IsInvalidUpdateError(err error) bool {
	var iue *InvalidUpdateError
	return errors.As(err, &iue)
}
