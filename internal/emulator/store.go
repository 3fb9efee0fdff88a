// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package emulator

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/golang/snappy"
	"github.com/ikmak/mongo-functions-go/document"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Storage errors.
var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrNotFound     = errors.New("document not found")
	ErrStoreClosed  = errors.New("store is closed")
)

// Store keeps the documents of every namespace ("db.collection"). Documents are identified
// by their _id and scanned in insertion order; Replace keeps a document's position.
type Store interface {
	Insert(ns string, id document.Val, doc document.Doc) error
	Replace(ns string, id document.Val, doc document.Doc) error
	Delete(ns string, id document.Val) error
	// Scan calls fn for every document of ns until fn returns false.
	Scan(ns string, fn func(document.Doc) bool) error
	Close() error
}

// Storage engine names.
const (
	EngineMemory = "memory"
	EngineBolt   = "bolt"
	EngineBadger = "badger"
)

// StoreConfig selects and configures a storage engine.
type StoreConfig struct {
	Engine string
	// Path is the bolt database file or the badger directory. Badger runs in memory when it
	// is empty.
	Path string
	// Compress stores documents snappy-compressed.
	Compress bool
}

// OpenStore opens the engine named by cfg.
func OpenStore(cfg StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Engine) {
	case "", EngineMemory:
		return NewMemoryStore(), nil
	case EngineBolt:
		return OpenBoltStore(cfg.Path, cfg.Compress)
	case EngineBadger:
		return OpenBadgerStore(cfg.Path, cfg.Compress)
	}
	return nil, errors.Errorf("unknown storage engine %q", cfg.Engine)
}

// idKey renders an _id as a map and database key. Integral numbers share a key regardless of
// their BSON type, so 1, int64(1) and 1.0 identify the same document.
func idKey(id document.Val) (string, error) {
	if f, ok := id.Float64OK(); ok && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		var b [9]byte
		b[0] = byte(bsontype.Int64)
		binary.BigEndian.PutUint64(b[1:], uint64(int64(f)))
		return string(b[:]), nil
	}
	t, data, err := id.MarshalBSONValue()
	if err != nil {
		return "", errors.Wrap(err, "cannot encode _id")
	}
	return string(byte(t)) + string(data), nil
}

type docCodec struct {
	compress bool
}

func (c docCodec) encode(doc document.Doc) ([]byte, error) {
	b, err := bson.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode document")
	}
	if c.compress {
		return snappy.Encode(nil, b), nil
	}
	return b, nil
}

func (c docCodec) decode(b []byte) (document.Doc, error) {
	if c.compress {
		var err error
		if b, err = snappy.Decode(nil, b); err != nil {
			return nil, errors.Wrap(err, "cannot decompress document")
		}
	} else {
		// b belongs to the storage engine's transaction.
		b = append([]byte(nil), b...)
	}
	doc, err := document.ReadDoc(b)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode stored document")
	}
	return doc, nil
}

func seqKey(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}
