// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package emulator

import (
	"time"

	"github.com/ikmak/mongo-functions-go/document"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var (
	boltDocsBucket = []byte("docs")
	boltIDsBucket  = []byte("ids")
)

// BoltStore persists documents in a bbolt file. Every namespace is a top-level bucket holding
// a docs bucket (sequence to document) and an ids bucket (_id key to sequence).
type BoltStore struct {
	db    *bbolt.DB
	codec docCodec
}

var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt file at path.
func OpenBoltStore(path string, compress bool) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("the bolt engine needs a storage path")
	}
	opts := *bbolt.DefaultOptions
	opts.Timeout = time.Second
	opts.FreelistType = bbolt.FreelistMapType
	db, err := bbolt.Open(path, 0o600, &opts)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open bolt store %q", path)
	}
	return &BoltStore{db: db, codec: docCodec{compress: compress}}, nil
}

func boltBuckets(tx *bbolt.Tx, ns string, create bool) (docs, ids *bbolt.Bucket, err error) {
	if !create {
		root := tx.Bucket([]byte(ns))
		if root == nil {
			return nil, nil, nil
		}
		return root.Bucket(boltDocsBucket), root.Bucket(boltIDsBucket), nil
	}
	root, err := tx.CreateBucketIfNotExists([]byte(ns))
	if err != nil {
		return nil, nil, err
	}
	if docs, err = root.CreateBucketIfNotExists(boltDocsBucket); err != nil {
		return nil, nil, err
	}
	if ids, err = root.CreateBucketIfNotExists(boltIDsBucket); err != nil {
		return nil, nil, err
	}
	return docs, ids, nil
}

// Insert implements Store.
func (s *BoltStore) Insert(ns string, id document.Val, doc document.Doc) error {
	key, err := idKey(id)
	if err != nil {
		return err
	}
	data, err := s.codec.encode(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		docs, ids, err := boltBuckets(tx, ns, true)
		if err != nil {
			return errors.Wrapf(err, "cannot create namespace %q", ns)
		}
		if ids.Get([]byte(key)) != nil {
			return ErrDuplicateKey
		}
		seq, err := docs.NextSequence()
		if err != nil {
			return err
		}
		if err := ids.Put([]byte(key), seqKey(seq)); err != nil {
			return err
		}
		return docs.Put(seqKey(seq), data)
	})
}

// Replace implements Store.
func (s *BoltStore) Replace(ns string, id document.Val, doc document.Doc) error {
	key, err := idKey(id)
	if err != nil {
		return err
	}
	data, err := s.codec.encode(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		docs, ids, err := boltBuckets(tx, ns, false)
		if err != nil {
			return err
		}
		if ids == nil {
			return ErrNotFound
		}
		seq := ids.Get([]byte(key))
		if seq == nil {
			return ErrNotFound
		}
		return docs.Put(seq, data)
	})
}

// Delete implements Store.
func (s *BoltStore) Delete(ns string, id document.Val) error {
	key, err := idKey(id)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		docs, ids, err := boltBuckets(tx, ns, false)
		if err != nil {
			return err
		}
		if ids == nil {
			return ErrNotFound
		}
		seq := ids.Get([]byte(key))
		if seq == nil {
			return ErrNotFound
		}
		seq = append([]byte(nil), seq...)
		if err := ids.Delete([]byte(key)); err != nil {
			return err
		}
		return docs.Delete(seq)
	})
}

// Scan implements Store.
func (s *BoltStore) Scan(ns string, fn func(document.Doc) bool) error {
	var out []document.Doc
	err := s.db.View(func(tx *bbolt.Tx) error {
		docs, _, err := boltBuckets(tx, ns, false)
		if err != nil || docs == nil {
			return err
		}
		return docs.ForEach(func(_, v []byte) error {
			doc, err := s.codec.decode(v)
			if err != nil {
				return err
			}
			out = append(out, doc)
			return nil
		})
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

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
