package store

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
)

// This file holds the in-process evaluator used by the embedded backends.
// It covers the subset of MongoDB query and update semantics the repository
// relies on, and rejects everything else with ErrUnsupported.

// Marshal encodes a document as BSON.
func Marshal(doc Document) ([]byte, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, ErrInvalidDoc.WithCause(err)
	}
	return data, nil
}

// Unmarshal decodes BSON into a document. Nested documents decode as
// bson.M and arrays as bson.A.
func Unmarshal(data []byte) (Document, error) {
	dec, err := bson.NewDecoder(bsonrw.NewBSONDocumentReader(data))
	if err != nil {
		return nil, ErrInvalidDoc.WithCause(err)
	}
	dec.DefaultDocumentM()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, ErrInvalidDoc.WithCause(err)
	}
	return doc, nil
}

// Encode converts a bson-tagged value into its document form.
func Encode(v any) (Document, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, ErrInvalidDoc.WithCause(err)
	}
	return Unmarshal(data)
}

// Decode converts a document into a bson-tagged value.
func Decode(doc Document, out any) error {
	data, err := bson.Marshal(doc)
	if err != nil {
		return ErrInvalidDoc.WithCause(err)
	}
	if err := bson.Unmarshal(data, out); err != nil {
		return ErrInvalidDoc.WithCause(err)
	}
	return nil
}

// Match reports whether doc satisfies filter. pos is the index of the array
// element selected by a dotted path or $elemMatch condition, or -1.
func Match(doc Document, filter Filter) (matched bool, pos int, err error) {
	pos = -1
	for key, cond := range filter {
		ok, p, err := matchField(doc, key, cond)
		if err != nil {
			return false, -1, err
		}
		if !ok {
			return false, -1, nil
		}
		if p >= 0 {
			pos = p
		}
	}
	return true, pos, nil
}

func matchField(doc Document, key string, cond any) (bool, int, error) {
	if strings.HasPrefix(key, "$") {
		return false, -1, ErrUnsupported.WithCause(fmt.Errorf("query operator %s", key))
	}

	if head, rest, dotted := strings.Cut(key, "."); dotted {
		if nested, isDoc := asDocument(doc[head]); isDoc {
			ok, _, err := matchField(nested, rest, cond)
			return ok, -1, err
		}
		arr, isArr := asArray(doc[head])
		if !isArr {
			return false, -1, nil
		}
		for i, elem := range arr {
			sub, isDoc := asDocument(elem)
			if !isDoc {
				continue
			}
			ok, _, err := matchField(sub, rest, cond)
			if err != nil {
				return false, -1, err
			}
			if ok {
				return true, i, nil
			}
		}
		return false, -1, nil
	}

	value := doc[key]

	if ops, isOps := operatorDocument(cond); isOps {
		return matchOperators(value, ops)
	}

	if arr, isArr := asArray(value); isArr {
		if _, condIsArr := asArray(cond); !condIsArr {
			for i, elem := range arr {
				if Equal(elem, cond) {
					return true, i, nil
				}
			}
			return false, -1, nil
		}
	}

	return Equal(value, cond), -1, nil
}

func matchOperators(value any, ops bson.M) (bool, int, error) {
	pos := -1
	for op, arg := range ops {
		switch op {
		case "$eq":
			if !Equal(value, arg) {
				return false, -1, nil
			}
		case "$ne":
			if Equal(value, arg) {
				return false, -1, nil
			}
		case "$in":
			candidates, ok := asArray(arg)
			if !ok {
				return false, -1, ErrUnsupported.WithCause(fmt.Errorf("$in needs an array"))
			}
			if !slices.ContainsFunc(candidates, func(c any) bool { return Equal(value, c) }) {
				return false, -1, nil
			}
		case "$elemMatch":
			sub, ok := asDocument(arg)
			if !ok {
				return false, -1, ErrUnsupported.WithCause(fmt.Errorf("$elemMatch needs a document"))
			}
			arr, _ := asArray(value)
			found := -1
			for i, elem := range arr {
				elemDoc, isDoc := asDocument(elem)
				if !isDoc {
					continue
				}
				ok, _, err := Match(elemDoc, sub)
				if err != nil {
					return false, -1, err
				}
				if ok {
					found = i
					break
				}
			}
			if found < 0 {
				return false, -1, nil
			}
			pos = found
		default:
			return false, -1, ErrUnsupported.WithCause(fmt.Errorf("query operator %s", op))
		}
	}
	return true, pos, nil
}

// ApplyUpdate mutates doc in place. pos is the element index captured by
// Match, used for positional "$" paths.
func ApplyUpdate(doc Document, update Update, pos int) (modified bool, err error) {
	for op, raw := range update {
		fields, ok := asDocument(raw)
		if !ok {
			return false, ErrUnsupported.WithCause(fmt.Errorf("%s needs a document", op))
		}

		var changed bool
		switch op {
		case "$set":
			changed, err = applySet(doc, fields, pos)
		case "$unset":
			for k := range fields {
				if _, present := doc[k]; present {
					delete(doc, k)
					changed = true
				}
			}
		case "$push":
			for k, v := range fields {
				arr, _ := asArray(doc[k])
				doc[k] = append(bson.A(arr), v)
				changed = true
			}
		case "$pull":
			changed, err = applyPull(doc, fields)
		case "$inc":
			changed, err = applyInc(doc, fields)
		default:
			err = ErrUnsupported.WithCause(fmt.Errorf("update operator %s", op))
		}
		if err != nil {
			return false, err
		}
		modified = modified || changed
	}
	return modified, nil
}

func applySet(doc Document, fields bson.M, pos int) (bool, error) {
	changed := false
	for path, v := range fields {
		field, sub, positional := cutPositional(path)
		if !positional {
			if strings.Contains(path, ".") {
				return false, ErrUnsupported.WithCause(fmt.Errorf("$set path %s", path))
			}
			if !Equal(doc[path], v) {
				changed = true
			}
			doc[path] = v
			continue
		}

		arr, ok := asArray(doc[field])
		if !ok || pos < 0 || pos >= len(arr) {
			return false, ErrUnsupported.WithCause(fmt.Errorf("positional %s without a matched element", path))
		}
		if sub == "" {
			if !Equal(arr[pos], v) {
				changed = true
			}
			arr[pos] = v
		} else {
			elem, isDoc := asDocument(arr[pos])
			if !isDoc {
				return false, ErrUnsupported.WithCause(fmt.Errorf("positional %s on a non-document", path))
			}
			if !Equal(elem[sub], v) {
				changed = true
			}
			elem[sub] = v
			arr[pos] = elem
		}
		doc[field] = arr
	}
	return changed, nil
}

// cutPositional splits "items.$" and "items.$.name" paths.
func cutPositional(path string) (field, sub string, ok bool) {
	if f, found := strings.CutSuffix(path, ".$"); found {
		return f, "", true
	}
	if f, s, found := strings.Cut(path, ".$."); found {
		return f, s, true
	}
	return "", "", false
}

func applyPull(doc Document, fields bson.M) (bool, error) {
	changed := false
	for k, cond := range fields {
		arr, ok := asArray(doc[k])
		if !ok {
			continue
		}
		kept := make(bson.A, 0, len(arr))
		for _, elem := range arr {
			remove := false
			if condDoc, isDoc := asDocument(cond); isDoc {
				if elemDoc, elemIsDoc := asDocument(elem); elemIsDoc {
					matched, _, err := Match(elemDoc, condDoc)
					if err != nil {
						return false, err
					}
					remove = matched
				}
			} else {
				remove = Equal(elem, cond)
			}
			if !remove {
				kept = append(kept, elem)
			}
		}
		if len(kept) != len(arr) {
			doc[k] = kept
			changed = true
		}
	}
	return changed, nil
}

func applyInc(doc Document, fields bson.M) (bool, error) {
	changed := false
	for k, delta := range fields {
		if _, ok := toFloat(delta); !ok {
			return false, ErrUnsupported.WithCause(fmt.Errorf("$inc %s by a non-number", k))
		}
		current, present := doc[k]
		if !present || current == nil {
			doc[k] = delta
			changed = true
			continue
		}

		ci, cIsInt := toInt(current)
		di, dIsInt := toInt(delta)
		if cIsInt && dIsInt {
			doc[k] = ci + di
			changed = changed || di != 0
			continue
		}

		cf, ok := toFloat(current)
		if !ok {
			return false, ErrUnsupported.WithCause(fmt.Errorf("$inc on non-numeric field %s", k))
		}
		df, _ := toFloat(delta)
		doc[k] = cf + df
		changed = changed || df != 0
	}
	return changed, nil
}

// UniqueKey renders the index key for doc. Missing fields index as null.
func UniqueKey(doc Document, index UniqueIndex) string {
	parts := make([]string, len(index.Fields))
	for i, f := range index.Fields {
		v, ok := doc[f]
		if !ok || v == nil {
			parts[i] = "null"
			continue
		}
		parts[i] = fmt.Sprintf("%T:%v", canonical(v), canonical(v))
	}
	return strings.Join(parts, "\x1f")
}

// Equal compares two document values, treating every numeric type alike.
func Equal(a, b any) bool {
	return reflect.DeepEqual(canonical(a), canonical(b))
}

// Clone returns a shallow copy of doc.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	return maps.Clone(doc)
}

// canonical normalizes numbers to float64 and containers to bson.M / []any.
func canonical(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	if d, ok := asDocument(v); ok {
		out := make(map[string]any, len(d))
		for k, val := range d {
			out[k] = canonical(val)
		}
		return out
	}
	if arr, ok := asArray(v); ok {
		out := make([]any, len(arr))
		for i, val := range arr {
			out[i] = canonical(val)
		}
		return out
	}
	return v
}

func operatorDocument(v any) (bson.M, bool) {
	d, ok := asDocument(v)
	if !ok || len(d) == 0 {
		return nil, false
	}
	for k := range d {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return d, true
}

func asDocument(v any) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case map[string]any:
		return bson.M(d), true
	case bson.D:
		m := make(bson.M, len(d))
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m, true
	default:
		return nil, false
	}
}

func asArray(v any) (bson.A, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []any:
		return bson.A(a), true
	case []bson.M:
		out := make(bson.A, len(a))
		for i, m := range a {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// FindElement returns the first sub-document of doc[arrayField] that
// satisfies match, or nil.
func FindElement(doc Document, arrayField string, match Filter) (Document, error) {
	arr, ok := asArray(doc[arrayField])
	if !ok {
		return nil, nil
	}
	for _, elem := range arr {
		sub, isDoc := asDocument(elem)
		if !isDoc {
			continue
		}
		matched, _, err := Match(sub, match)
		if err != nil {
			return nil, err
		}
		if matched {
			return sub, nil
		}
	}
	return nil, nil
}
