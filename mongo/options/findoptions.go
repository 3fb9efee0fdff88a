// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package options

// FindOptions represent all possible options to the Find() and FindOne() functions.
type FindOptions struct {
	Limit      *int64      // Sets a limit on the number of results to return. 0 means no limit.
	Projection interface{} // Limits the fields returned for all documents.
	Sort       interface{} // Specifies the order in which to return results.
}

// Find creates a new FindOptions instance.
func Find() *FindOptions {
	return &FindOptions{}
}

// SetLimit specifies a limit on the number of results.
func (f *FindOptions) SetLimit(i int64) *FindOptions {
	f.Limit = &i
	return f
}

// SetProjection adds an option to limit the fields returned for all documents. Values of 1
// include a field and values of 0 exclude it; the two cannot be mixed except for _id.
func (f *FindOptions) SetProjection(projection interface{}) *FindOptions {
	f.Projection = projection
	return f
}

// SetSort specifies the order in which to return documents, as a document of field names and
// 1 (ascending) or -1 (descending).
func (f *FindOptions) SetSort(sort interface{}) *FindOptions {
	f.Sort = sort
	return f
}

// MergeFindOptions combines the argued FindOptions into a single FindOptions in a last-one-wins fashion
func MergeFindOptions(opts ...*FindOptions) *FindOptions {
	fo := Find()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if opt.Limit != nil {
			fo.Limit = opt.Limit
		}
		if opt.Projection != nil {
			fo.Projection = opt.Projection
		}
		if opt.Sort != nil {
			fo.Sort = opt.Sort
		}
	}

	return fo
}
