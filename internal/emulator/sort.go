// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package emulator

import (
	"sort"
	"strings"

	"github.com/ikmak/mongo-functions-go/document"
)

type sortKey struct {
	path []string
	desc bool
}

type sortSpec []sortKey

func compileSort(spec document.Doc) (sortSpec, error) {
	if len(spec) == 0 {
		return nil, nil
	}
	keys := make(sortSpec, 0, len(spec))
	for _, elem := range spec {
		f, ok := elem.Value.Float64OK()
		if !ok || (f != 1 && f != -1) {
			return nil, invalidFilterf("bad sort specification: %s: %s", elem.Key, elem.Value)
		}
		keys = append(keys, sortKey{path: strings.Split(elem.Key, "."), desc: f < 0})
	}
	return keys, nil
}

func sortValue(doc document.Doc, path []string) document.Val {
	vals := pathValues(doc, path)
	if len(vals) == 0 {
		return document.Null()
	}
	return vals[0]
}

// sort orders docs in place. Documents that compare equal keep their insertion order.
func (s sortSpec) sort(docs []document.Doc) {
	if len(s) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range s {
			c := compareValues(sortValue(docs[i], k.path), sortValue(docs[j], k.path))
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
