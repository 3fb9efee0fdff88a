// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package options

// FindOneAndModifyOptions represents all possible options to the FindOneAndUpdate(),
// FindOneAndReplace() and FindOneAndDelete() functions. Upsert and ReturnDocument are
// ignored by FindOneAndDelete.
type FindOneAndModifyOptions struct {
	Projection     interface{}     // Limits the fields of the returned document.
	Sort           interface{}     // Selects the document to modify when several match.
	Upsert         *bool           // Inserts a new document when nothing matches.
	ReturnDocument *ReturnDocument // Returns the document as it was before or after the modification.
}

// FindOneAndModify creates a new FindOneAndModifyOptions instance.
func FindOneAndModify() *FindOneAndModifyOptions {
	return &FindOneAndModifyOptions{}
}

// SetProjection adds an option to limit the fields returned.
func (f *FindOneAndModifyOptions) SetProjection(projection interface{}) *FindOneAndModifyOptions {
	f.Projection = projection
	return f
}

// SetSort specifies which document is modified when the filter matches several.
func (f *FindOneAndModifyOptions) SetSort(sort interface{}) *FindOneAndModifyOptions {
	f.Sort = sort
	return f
}

// SetUpsert allows the creation of a new document if no document matches the query.
func (f *FindOneAndModifyOptions) SetUpsert(b bool) *FindOneAndModifyOptions {
	f.Upsert = &b
	return f
}

// SetReturnDocument specifies whether the original or the modified document is returned.
func (f *FindOneAndModifyOptions) SetReturnDocument(rd ReturnDocument) *FindOneAndModifyOptions {
	f.ReturnDocument = &rd
	return f
}

// MergeFindOneAndModifyOptions combines the argued FindOneAndModifyOptions into a single
// FindOneAndModifyOptions in a last-one-wins fashion
func MergeFindOneAndModifyOptions(opts ...*FindOneAndModifyOptions) *FindOneAndModifyOptions {
	fo := FindOneAndModify()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if opt.Projection != nil {
			fo.Projection = opt.Projection
		}
		if opt.Sort != nil {
			fo.Sort = opt.Sort
		}
		if opt.Upsert != nil {
			fo.Upsert = opt.Upsert
		}
		if opt.ReturnDocument != nil {
			fo.ReturnDocument = opt.ReturnDocument
		}
	}

	return fo
}
