// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package emulator

import (
	"strings"

	"github.com/ikmak/mongo-functions-go/document"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

type projectionNode struct {
	leaf     bool
	children map[string]*projectionNode
}

func (n *projectionNode) child(key string) *projectionNode {
	if n.children == nil {
		n.children = make(map[string]*projectionNode)
	}
	c, ok := n.children[key]
	if !ok {
		c = &projectionNode{}
		n.children[key] = c
	}
	return c
}

// projection keeps or drops the fields named by a projection document.
type projection struct {
	include   bool
	excludeID bool
	root      *projectionNode
}

// compileProjection validates spec. A nil spec projects nothing.
func compileProjection(spec document.Doc) (*projection, error) {
	if len(spec) == 0 {
		return nil, nil
	}
	p := &projection{root: &projectionNode{}}
	var sawInclude, sawExclude bool
	for _, elem := range spec {
		if strings.HasPrefix(elem.Key, "$") || elem.Key == "" {
			return nil, invalidFilterf("projection field %q is not supported", elem.Key)
		}
		var on bool
		switch {
		case elem.Value.IsNumber():
			f, _ := elem.Value.Float64OK()
			on = f != 0
		case elem.Value.Type() == bsontype.Boolean:
			on, _ = elem.Value.BooleanOK()
		default:
			return nil, invalidFilterf("Unsupported projection option: %s: %s", elem.Key, elem.Value)
		}

		if elem.Key == "_id" {
			p.excludeID = !on
			continue
		}
		if on {
			sawInclude = true
		} else {
			sawExclude = true
		}
		if sawInclude && sawExclude {
			if on {
				return nil, invalidFilterf("Cannot do inclusion on field %s in exclusion projection", elem.Key)
			}
			return nil, invalidFilterf("Cannot do exclusion on field %s in inclusion projection", elem.Key)
		}
		n := p.root
		for _, seg := range strings.Split(elem.Key, ".") {
			n = n.child(seg)
		}
		n.leaf = true
	}
	// {_id: 1} alone keeps only the _id.
	p.include = sawInclude || (!sawExclude && !p.excludeID)
	return p, nil
}

// apply returns the projected copy of doc. A nil projection returns doc unchanged.
func (p *projection) apply(doc document.Doc) document.Doc {
	if p == nil {
		return doc
	}
	var out document.Doc
	if p.include {
		out = includeFields(doc, p.root)
		if id, ok := doc.ID(); ok && !p.excludeID {
			out = out.Delete("_id").Prepend("_id", id)
		}
		return out
	}
	out = excludeFields(doc, p.root)
	if p.excludeID {
		out = out.Delete("_id")
	}
	return out
}

func includeFields(doc document.Doc, n *projectionNode) document.Doc {
	out := document.Doc{}
	for _, elem := range doc {
		c, ok := n.children[elem.Key]
		if !ok {
			continue
		}
		if c.leaf {
			out = out.Append(elem.Key, elem.Value.Copy())
			continue
		}
		if v, ok := includeIn(elem.Value, c); ok {
			out = out.Append(elem.Key, v)
		}
	}
	return out
}

func includeIn(v document.Val, n *projectionNode) (document.Val, bool) {
	if sub, ok := v.DocumentOK(); ok {
		return document.Document(includeFields(sub, n)), true
	}
	if arr, ok := v.ArrayOK(); ok {
		out := make(document.Arr, 0, len(arr))
		for _, elem := range arr {
			if sub, ok := elem.DocumentOK(); ok {
				out = append(out, document.Document(includeFields(sub, n)))
			}
		}
		return document.Array(out), true
	}
	return document.Val{}, false
}

func excludeFields(doc document.Doc, n *projectionNode) document.Doc {
	out := document.Doc{}
	for _, elem := range doc {
		c, ok := n.children[elem.Key]
		switch {
		case !ok:
			out = out.Append(elem.Key, elem.Value.Copy())
		case c.leaf:
		default:
			out = out.Append(elem.Key, excludeIn(elem.Value, c))
		}
	}
	return out
}

func excludeIn(v document.Val, n *projectionNode) document.Val {
	if sub, ok := v.DocumentOK(); ok {
		return document.Document(excludeFields(sub, n))
	}
	if arr, ok := v.ArrayOK(); ok {
		out := make(document.Arr, 0, len(arr))
		for _, elem := range arr {
			out = append(out, excludeIn(elem, n))
		}
		return document.Array(out)
	}
	return v.Copy()
}
