package dongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Reference field names as stored in documents.
const (
	refIDField   = "_dref"
	refCollField = "_coll"
)

// Ref is a portable pointer to a document in another collection. It
// serializes as {"_dref": id, "_coll": collection} and can be embedded
// anywhere in a document, including inside arrays.
type Ref struct {
	ID         string
	Collection string
}

// Encode renders the reference in its stored shape.
func (r *Ref) Encode() map[string]interface{} {
	return map[string]interface{}{
		refIDField:   r.ID,
		refCollField: r.Collection,
	}
}

// idKind classifies which identifier field a reference id targets. A
// canonical 36-character RFC 4122 string is a secondary identifier;
// everything else is treated as a primary identifier.
func (r *Ref) idKind() string {
	if len(r.ID) == 36 {
		if _, err := uuid.Parse(r.ID); err == nil {
			return "_uuid"
		}
	}
	return "_id"
}

// AsRef decodes a stored reference shape back into a Ref. It accepts
// a Ref or *Ref as-is, and a map carrying string _dref and _coll
// fields.
func AsRef(value interface{}) (*Ref, bool) {
	switch v := value.(type) {
	case *Ref:
		return v, true
	case Ref:
		return &v, true
	case map[string]interface{}:
		id, okID := v[refIDField].(string)
		coll, okColl := v[refCollField].(string)
		if okID && okColl && id != "" && coll != "" {
			return &Ref{ID: id, Collection: coll}, true
		}
	}
	return nil, false
}

// DerefSingle resolves one reference to its entity, or nil when the
// referenced document is gone. The target collection must be declared
// on this client.
func (c *Client) DerefSingle(ctx context.Context, value interface{}) (*Entity, error) {
	ref, ok := AsRef(value)
	if !ok {
		return nil, fmt.Errorf("%w: %v is not a reference", ErrDeref, value)
	}
	coll := c.lookup(ref.Collection)
	if coll == nil {
		return nil, fmt.Errorf("%w: collection %q is not declared on this client", ErrDeref, ref.Collection)
	}
	return coll.Filter(P{ref.idKind(): ref.ID}).First(ctx)
}

// DerefMany resolves a batch of references to a single QuerySet over
// their common collection. All references must point into the same
// declared collection and carry the same kind of identifier; the list
// must not be empty.
func (c *Client) DerefMany(values []interface{}) (*QuerySet, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty reference list", ErrDeref)
	}
	refs := make([]*Ref, 0, len(values))
	for _, value := range values {
		ref, ok := AsRef(value)
		if !ok {
			return nil, fmt.Errorf("%w: %v is not a reference", ErrDeref, value)
		}
		refs = append(refs, ref)
	}
	collName := refs[0].Collection
	kind := refs[0].idKind()
	ids := make([]interface{}, 0, len(refs))
	for _, ref := range refs {
		if ref.Collection != collName {
			return nil, fmt.Errorf("%w: references span collections %q and %q", ErrDeref, collName, ref.Collection)
		}
		if ref.idKind() != kind {
			return nil, fmt.Errorf("%w: references mix identifier kinds", ErrDeref)
		}
		ids = append(ids, ref.ID)
	}
	coll := c.lookup(collName)
	if coll == nil {
		return nil, fmt.Errorf("%w: collection %q is not declared on this client", ErrDeref, collName)
	}
	return coll.Filter(P{kind + "__in": ids}), nil
}

// Deref resolves either one reference shape or a slice of them into a
// QuerySet over the referenced documents.
func (c *Client) Deref(value interface{}) (*QuerySet, error) {
	switch v := value.(type) {
	case []interface{}:
		return c.DerefMany(v)
	default:
		ref, ok := AsRef(v)
		if !ok {
			return nil, fmt.Errorf("%w: %v is not a reference", ErrDeref, value)
		}
		return c.DerefMany([]interface{}{ref})
	}
}
