// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package emulator

import (
	"sort"
	"sync"

	"github.com/ikmak/mongo-functions-go/document"
)

type memCollection struct {
	next uint64
	ids  map[string]uint64
	docs map[uint64]document.Doc
}

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	colls  map[string]*memCollection
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{colls: make(map[string]*memCollection)}
}

func (m *MemoryStore) collection(ns string, create bool) *memCollection {
	c, ok := m.colls[ns]
	if !ok && create {
		c = &memCollection{ids: make(map[string]uint64), docs: make(map[uint64]document.Doc)}
		m.colls[ns] = c
	}
	return c
}

// Insert implements Store.
func (m *MemoryStore) Insert(ns string, id document.Val, doc document.Doc) error {
	key, err := idKey(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	c := m.collection(ns, true)
	if _, exists := c.ids[key]; exists {
		return ErrDuplicateKey
	}
	c.next++
	c.ids[key] = c.next
	c.docs[c.next] = doc.Copy()
	return nil
}

// Replace implements Store.
func (m *MemoryStore) Replace(ns string, id document.Val, doc document.Doc) error {
	key, err := idKey(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	c := m.collection(ns, false)
	if c == nil {
		return ErrNotFound
	}
	seq, ok := c.ids[key]
	if !ok {
		return ErrNotFound
	}
	c.docs[seq] = doc.Copy()
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ns string, id document.Val) error {
	key, err := idKey(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	c := m.collection(ns, false)
	if c == nil {
		return ErrNotFound
	}
	seq, ok := c.ids[key]
	if !ok {
		return ErrNotFound
	}
	delete(c.ids, key)
	delete(c.docs, seq)
	return nil
}

// Scan implements Store. fn receives copies, so it may keep or modify them.
func (m *MemoryStore) Scan(ns string, fn func(document.Doc) bool) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrStoreClosed
	}
	c := m.collection(ns, false)
	if c == nil {
		m.mu.RUnlock()
		return nil
	}
	seqs := make([]uint64, 0, len(c.docs))
	for seq := range c.docs {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	docs := make([]document.Doc, 0, len(seqs))
	for _, seq := range seqs {
		docs = append(docs, c.docs[seq].Copy())
	}
	m.mu.RUnlock()

	for _, doc := range docs {
		if !fn(doc) {
			break
		}
	}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.colls = nil
	return nil
}
