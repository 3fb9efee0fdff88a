// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package emulator

import (
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/ikmak/mongo-functions-go/document"
	"github.com/pkg/errors"
)

const badgerSequenceBandwidth = 128

// BadgerStore persists documents in a badger database. Documents live under
// d/<ns>/<sequence>, the _id index under i/<ns>/<id key>, and per-namespace sequences under
// s/<ns>.
type BadgerStore struct {
	db    *badger.DB
	codec docCodec

	mu   sync.Mutex
	seqs map[string]*badger.Sequence
}

var _ Store = (*BadgerStore)(nil)

// OpenBadgerStore opens the badger database in dir, or an in-memory database when dir is
// empty.
func OpenBadgerStore(dir string, compress bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.NumVersionsToKeep = 1

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open badger store %q", dir)
	}
	return &BadgerStore{db: db, codec: docCodec{compress: compress}, seqs: make(map[string]*badger.Sequence)}, nil
}

func badgerDocPrefix(ns string) []byte { return []byte("d/" + ns + "/") }

func badgerDocKey(ns string, seq []byte) []byte {
	return append(badgerDocPrefix(ns), seq...)
}

func badgerIDKey(ns, key string) []byte { return []byte("i/" + ns + "/" + key) }

func (s *BadgerStore) nextSeq(ns string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.seqs[ns]
	if !ok {
		var err error
		if seq, err = s.db.GetSequence([]byte("s/"+ns), badgerSequenceBandwidth); err != nil {
			return 0, errors.Wrapf(err, "cannot lease sequence of %q", ns)
		}
		s.seqs[ns] = seq
	}
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// Sequences start at 0; keep 0 free so a zero key never names a document.
	return n + 1, nil
}

// Insert implements Store.
func (s *BadgerStore) Insert(ns string, id document.Val, doc document.Doc) error {
	key, err := idKey(id)
	if err != nil {
		return err
	}
	data, err := s.codec.encode(doc)
	if err != nil {
		return err
	}
	seq, err := s.nextSeq(ns)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		ik := badgerIDKey(ns, key)
		switch _, err := txn.Get(ik); {
		case err == nil:
			return ErrDuplicateKey
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(ik, seqKey(seq)); err != nil {
			return err
		}
		return txn.Set(badgerDocKey(ns, seqKey(seq)), data)
	})
	return err
}

func (s *BadgerStore) lookupSeq(txn *badger.Txn, ns, key string) ([]byte, error) {
	item, err := txn.Get(badgerIDKey(ns, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Replace implements Store.
func (s *BadgerStore) Replace(ns string, id document.Val, doc document.Doc) error {
	key, err := idKey(id)
	if err != nil {
		return err
	}
	data, err := s.codec.encode(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		seq, err := s.lookupSeq(txn, ns, key)
		if err != nil {
			return err
		}
		return txn.Set(badgerDocKey(ns, seq), data)
	})
}

// Delete implements Store.
func (s *BadgerStore) Delete(ns string, id document.Val) error {
	key, err := idKey(id)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		seq, err := s.lookupSeq(txn, ns, key)
		if err != nil {
			return err
		}
		if err := txn.Delete(badgerIDKey(ns, key)); err != nil {
			return err
		}
		return txn.Delete(badgerDocKey(ns, seq))
	})
}

// Scan implements Store.
func (s *BadgerStore) Scan(ns string, fn func(document.Doc) bool) error {
	var out []document.Doc
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerDocPrefix(ns)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var doc document.Doc
			err := it.Item().Value(func(val []byte) error {
				var err error
				doc, err = s.codec.decode(val)
				return err
			})
			if err != nil {
				return err
			}
			out = append(out, doc)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "cannot scan %q", ns)
	}
	for _, doc := range out {
		if !fn(doc) {
			break
		}
	}
	return nil
}

// Close releases the leased sequences and closes the database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	for ns, seq := range s.seqs {
		_ = seq.Release()
		delete(s.seqs, ns)
	}
	s.mu.Unlock()
	return s.db.Close()
}
