// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package emulator

import (
	"fmt"

	"github.com/ikmak/mongo-functions-go/x/functions"
)

// Server error codes produced by the engine.
const (
	codeBadValue       = 2
	codeFailedToParse  = 9
	codeImmutableField = 66
	codeDuplicateKey   = 11000
)

// CommandError is a failure reported by the engine with a server-style code and message.
type CommandError struct {
	Code    int32
	Name    string
	Message string
	// Index is the position of the failing document of an insertMany, or -1.
	Index int
	// Kind is functions.KindInvalidFilter or functions.KindInvalidUpdate when the request
	// itself was malformed, and empty otherwise.
	Kind string
}

func (e *CommandError) Error() string { return e.Message }

func badValuef(format string, args ...interface{}) *CommandError {
	return &CommandError{Code: codeBadValue, Name: "BadValue", Message: fmt.Sprintf(format, args...), Index: -1}
}

func failedToParsef(format string, args ...interface{}) *CommandError {
	return &CommandError{Code: codeFailedToParse, Name: "FailedToParse", Message: fmt.Sprintf(format, args...), Index: -1}
}

func invalidFilterf(format string, args ...interface{}) *CommandError {
	ce := badValuef(format, args...)
	ce.Kind = functions.KindInvalidFilter
	return ce
}

func invalidUpdate(ce *CommandError) *CommandError {
	ce.Kind = functions.KindInvalidUpdate
	return ce
}

func immutableID() *CommandError {
	return &CommandError{
		Code:    codeImmutableField,
		Name:    "ImmutableField",
		Message: "Performing an update on the path '_id' would modify the immutable field '_id'",
		Index:   -1,
	}
}

func duplicateKey(ns string, id fmt.Stringer) *CommandError {
	return &CommandError{
		Code:    codeDuplicateKey,
		Name:    "DuplicateKey",
		Message: fmt.Sprintf("E11000 duplicate key error collection: %s index: _id_ dup key: { _id: %s }", ns, id),
		Index:   -1,
	}
}
