// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package options defines the optional configurations for the client and the collection
// operations. Every option type has a constructor, chainable setters and a Merge function
// that combines several option values with a last-one-wins rule.
package options

// ReturnDocument specifies whether a findOneAndUpdate or findOneAndReplace operation should
// return the document as it was before or after the modification.
type ReturnDocument int8

// These constants specify valid values for ReturnDocument.
const (
	// Before returns the document as it was before the modification. This is the default.
	Before ReturnDocument = iota
	// After returns the document as it is after the modification.
	After
)

// String implements the fmt.Stringer interface.
func (rd ReturnDocument) String() string {
	if rd == After {
		return "after"
	}
	return "before"
}
