// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package emulator

import (
	"sync"

	"github.com/ikmak/mongo-functions-go/document"
	"github.com/pkg/errors"
)

// Engine executes collection operations on a Store. Operations are serialized, so every
// read-modify-write is atomic with respect to the others.
type Engine struct {
	mu    sync.Mutex
	store Store
}

// NewEngine creates an Engine around store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// FindSpec describes a find or findOne.
type FindSpec struct {
	Filter     document.Doc
	Projection document.Doc
	Sort       document.Doc
	// Limit caps the number of documents returned; 0 means no limit.
	Limit int64
}

// UpdateResult is the outcome of Update.
type UpdateResult struct {
	Matched    int64
	Modified   int64
	UpsertedID *document.Val
}

// FindAndModifySpec describes a findOneAndUpdate, findOneAndReplace or findOneAndDelete.
type FindAndModifySpec struct {
	Filter     document.Doc
	Update     document.Doc
	Projection document.Doc
	Sort       document.Doc
	Remove     bool
	Replace    bool
	Upsert     bool
	ReturnNew  bool
}

// collect returns the documents of ns matching m, in insertion order, stopping after limit
// documents when limit is positive and no sort is applied afterwards.
func (e *Engine) collect(ns string, m matcher, limit int64) ([]document.Doc, error) {
	var out []document.Doc
	err := e.store.Scan(ns, func(doc document.Doc) bool {
		if m(doc) {
			out = append(out, doc)
		}
		return limit <= 0 || int64(len(out)) < limit
	})
	return out, err
}

// Count returns the number of documents of ns matching filter, capped at limit when it is
// positive.
func (e *Engine) Count(ns string, filter document.Doc, limit int64) (int64, error) {
	m, err := compileFilter(filter)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	docs, err := e.collect(ns, m, limit)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// Find returns the matching documents, sorted, limited and projected.
func (e *Engine) Find(ns string, spec FindSpec) ([]document.Doc, error) {
	m, err := compileFilter(spec.Filter)
	if err != nil {
		return nil, err
	}
	proj, err := compileProjection(spec.Projection)
	if err != nil {
		return nil, err
	}
	order, err := compileSort(spec.Sort)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	scanLimit := spec.Limit
	if len(order) > 0 {
		scanLimit = 0
	}
	docs, err := e.collect(ns, m, scanLimit)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	order.sort(docs)
	if spec.Limit > 0 && int64(len(docs)) > spec.Limit {
		docs = docs[:spec.Limit]
	}
	out := make([]document.Doc, 0, len(docs))
	for _, doc := range docs {
		out = append(out, proj.apply(doc))
	}
	return out, nil
}

func (e *Engine) insert(ns string, doc document.Doc) (document.Val, error) {
	doc = ensureID(doc)
	id, _ := doc.ID()
	if err := e.store.Insert(ns, id, doc); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return document.Val{}, duplicateKey(ns, id)
		}
		return document.Val{}, errors.Wrapf(err, "cannot insert into %s", ns)
	}
	return id, nil
}

// InsertOne inserts doc, generating an ObjectID _id when it has none.
func (e *Engine) InsertOne(ns string, doc document.Doc) (document.Val, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.insert(ns, doc)
}

// InsertMany inserts docs in order and stops at the first failure. The ids of the documents
// inserted before the failure are returned with the error, whose Index names the failing
// document.
func (e *Engine) InsertMany(ns string, docs []document.Doc) ([]document.Val, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]document.Val, 0, len(docs))
	for i, doc := range docs {
		id, err := e.insert(ns, doc)
		if err != nil {
			var ce *CommandError
			if errors.As(err, &ce) {
				ce.Index = i
			}
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Delete removes the first, or every, document matching filter.
func (e *Engine) Delete(ns string, filter document.Doc, many bool) (int64, error) {
	m, err := compileFilter(filter)
	if err != nil {
		return 0, err
	}
	limit := int64(1)
	if many {
		limit = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	docs, err := e.collect(ns, m, limit)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, doc := range docs {
		id, _ := doc.ID()
		if err := e.store.Delete(ns, id); err != nil && !errors.Is(err, ErrNotFound) {
			return n, errors.Wrapf(err, "cannot delete from %s", ns)
		}
		n++
	}
	return n, nil
}

func (e *Engine) replace(ns string, old, updated document.Doc) (bool, error) {
	if old.Equal(updated) {
		return false, nil
	}
	id, _ := old.ID()
	if err := e.store.Replace(ns, id, updated); err != nil {
		return false, errors.Wrapf(err, "cannot update %s", ns)
	}
	return true, nil
}

// Update applies update to the first, or every, document matching filter. With upsert and no
// match a new document is inserted.
func (e *Engine) Update(ns string, filter, update document.Doc, upsert, many bool) (UpdateResult, error) {
	m, err := compileFilter(filter)
	if err != nil {
		return UpdateResult{}, err
	}
	u, err := compileUpdate(update)
	if err != nil {
		return UpdateResult{}, err
	}
	limit := int64(1)
	if many {
		limit = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	docs, err := e.collect(ns, m, limit)
	if err != nil {
		return UpdateResult{}, err
	}

	var res UpdateResult
	if len(docs) == 0 {
		if !upsert {
			return res, nil
		}
		doc, err := newUpsert(filter, u)
		if err != nil {
			return res, err
		}
		id, err := e.insert(ns, doc)
		if err != nil {
			return res, err
		}
		res.UpsertedID = &id
		return res, nil
	}

	for _, doc := range docs {
		updated, err := u.apply(doc, false)
		if err != nil {
			return res, err
		}
		res.Matched++
		changed, err := e.replace(ns, doc, updated)
		if err != nil {
			return res, err
		}
		if changed {
			res.Modified++
		}
	}
	return res, nil
}

// FindAndModify modifies or removes the first document matching the filter in sort order and
// returns it as it was before, or after when ReturnNew is set. It returns nil when nothing
// matched and no document was upserted, or when an upsert happened without ReturnNew.
func (e *Engine) FindAndModify(ns string, spec FindAndModifySpec) (*document.Doc, error) {
	m, err := compileFilter(spec.Filter)
	if err != nil {
		return nil, err
	}
	proj, err := compileProjection(spec.Projection)
	if err != nil {
		return nil, err
	}
	order, err := compileSort(spec.Sort)
	if err != nil {
		return nil, err
	}
	var u *compiledUpdate
	if !spec.Remove {
		if u, err = compileUpdate(spec.Update); err != nil {
			return nil, err
		}
		if spec.Replace && !u.isReplacement() {
			return nil, invalidUpdate(badValuef("the replacement document must not contain update operators"))
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	limit := int64(1)
	if len(order) > 0 {
		limit = 0
	}
	docs, err := e.collect(ns, m, limit)
	if err != nil {
		return nil, err
	}
	order.sort(docs)

	if len(docs) == 0 {
		if spec.Remove || !spec.Upsert {
			return nil, nil
		}
		doc, err := newUpsert(spec.Filter, u)
		if err != nil {
			return nil, err
		}
		if _, err := e.insert(ns, doc); err != nil {
			return nil, err
		}
		if !spec.ReturnNew {
			return nil, nil
		}
		out := proj.apply(doc)
		return &out, nil
	}

	old := docs[0]
	if spec.Remove {
		id, _ := old.ID()
		if err := e.store.Delete(ns, id); err != nil {
			return nil, errors.Wrapf(err, "cannot delete from %s", ns)
		}
		out := proj.apply(old)
		return &out, nil
	}

	updated, err := u.apply(old, false)
	if err != nil {
		return nil, err
	}
	if _, err := e.replace(ns, old, updated); err != nil {
		return nil, err
	}
	result := old
	if spec.ReturnNew {
		result = updated
	}
	out := proj.apply(result)
	return &out, nil
}

// Close closes the underlying store.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Close()
}
