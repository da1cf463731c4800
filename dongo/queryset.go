package dongo

import (
	"context"
	"fmt"
	"reflect"

	"github.com/dongo-odm/dongo/dongo/driver"
	"github.com/dongo-odm/dongo/dongo/query"
	"github.com/dongo-odm/dongo/internal/fieldpath"
)

// QuerySet is a lazily evaluated query against one collection. Fluent
// setters refine it, boolean combinators compose it, and the terminal
// methods (First, List, Iter, Count, Update, Inc, Delete, Map) execute
// it. Nothing touches the store until a terminal runs.
type QuerySet struct {
	coll *Collection
	node query.Node
	opts driver.FindOptions
}

func newQuerySet(c *Collection, preds P) *QuerySet {
	node, opts := query.Build(query.Predicates(preds))
	return &QuerySet{coll: c, node: node, opts: opts}
}

func emptyQuerySet(c *Collection, or bool) *QuerySet {
	node := query.NewAnd()
	if or {
		node = query.NewOr()
	}
	return &QuerySet{coll: c, node: node}
}

// Node exposes the query tree in the store's native shape.
func (qs *QuerySet) Node() query.Node { return qs.node }

// Compose appends other's tree as a child of this queryset's boolean
// root, mutating the receiver. Other's options are discarded; only its
// filter participates.
func (qs *QuerySet) Compose(other *QuerySet) error {
	return qs.node.Compose(other.node)
}

// Or combines two querysets under a fresh OR root. Neither input is
// mutated and neither input's options carry over.
func (qs *QuerySet) Or(other *QuerySet) *QuerySet {
	return &QuerySet{coll: qs.coll, node: query.Or(qs.node, other.node)}
}

// And combines two querysets under a fresh AND root.
func (qs *QuerySet) And(other *QuerySet) *QuerySet {
	return &QuerySet{coll: qs.coll, node: query.And(qs.node, other.node)}
}

// Sort orders results by one or more fields, ascending.
func (qs *QuerySet) Sort(fields ...string) *QuerySet {
	for _, f := range fields {
		qs.opts.Sort = append(qs.opts.Sort, driver.Asc(f))
	}
	return qs
}

// SortBy orders results by explicit sort fields.
func (qs *QuerySet) SortBy(fields ...driver.SortField) *QuerySet {
	qs.opts.Sort = append(qs.opts.Sort, fields...)
	return qs
}

// Limit caps the number of returned documents.
func (qs *QuerySet) Limit(n int64) *QuerySet {
	qs.opts.Limit = &n
	return qs
}

// Skip discards the first n matches.
func (qs *QuerySet) Skip(n int64) *QuerySet {
	qs.opts.Skip = &n
	return qs
}

// NoTimeout marks the cursor as exempt from server-side idle timeouts.
func (qs *QuerySet) NoTimeout() *QuerySet {
	qs.opts.NoCursorTimeout = true
	return qs
}

// filter renders the node as the driver's filter document.
func (qs *QuerySet) filter() map[string]interface{} {
	return map[string]interface{}(qs.node)
}

// First returns the first match, or nil when nothing matches.
func (qs *QuerySet) First(ctx context.Context) (*Entity, error) {
	doc, err := qs.coll.client.drv.FindOne(ctx, qs.coll.Namespace(), qs.filter(), qs.opts)
	if err != nil {
		return nil, err
	}
	return qs.coll.wrap(doc)
}

// FirstOrDie returns the first match, or ErrNotFound.
func (qs *QuerySet) FirstOrDie(ctx context.Context) (*Entity, error) {
	entity, err := qs.First(ctx)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: no %q document matches %v", ErrNotFound, qs.coll.name, qs.filter())
	}
	return entity, nil
}

// Iter executes the query and returns a streaming iterator over the
// matching entities.
func (qs *QuerySet) Iter(ctx context.Context) (*Iter, error) {
	cursor, err := qs.coll.client.drv.Find(ctx, qs.coll.Namespace(), qs.filter(), qs.opts)
	if err != nil {
		return nil, err
	}
	return &Iter{coll: qs.coll, cursor: cursor}, nil
}

// List executes the query and collects every match.
func (qs *QuerySet) List(ctx context.Context) ([]*Entity, error) {
	it, err := qs.Iter(ctx)
	if err != nil {
		return nil, err
	}
	defer it.Close(ctx)
	var results []*Entity
	for it.Next(ctx) {
		results = append(results, it.Entity())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Count returns the number of matching documents.
func (qs *QuerySet) Count(ctx context.Context) (int64, error) {
	return qs.coll.client.drv.Count(ctx, qs.coll.Namespace(), qs.filter(), qs.opts)
}

// Update applies a $set with the given fields to every match.
func (qs *QuerySet) Update(ctx context.Context, fields P) (*driver.UpdateResult, error) {
	set := make(map[string]interface{}, len(fields))
	for term, val := range fields {
		path, _ := query.TranslateTerm(term, val)
		set[path] = val
	}
	update := map[string]interface{}{"$set": set}
	return qs.coll.client.drv.UpdateMany(ctx, qs.coll.Namespace(), qs.filter(), update)
}

// Inc applies a $inc with the given deltas to every match.
func (qs *QuerySet) Inc(ctx context.Context, deltas P) (*driver.UpdateResult, error) {
	inc := make(map[string]interface{}, len(deltas))
	for term, val := range deltas {
		path, _ := query.TranslateTerm(term, val)
		inc[path] = val
	}
	update := map[string]interface{}{"$inc": inc}
	return qs.coll.client.drv.UpdateMany(ctx, qs.coll.Namespace(), qs.filter(), update)
}

// Delete removes every matching document.
func (qs *QuerySet) Delete(ctx context.Context) (*driver.DeleteResult, error) {
	return qs.coll.client.drv.DeleteMany(ctx, qs.coll.Namespace(), qs.filter())
}

// Map groups the matches by the value at a dotted path (or "__" term).
// Every match must carry the grouping field.
func (qs *QuerySet) Map(ctx context.Context, term string) (map[interface{}][]*Entity, error) {
	path, _ := query.TranslateTerm(term, nil)
	entities, err := qs.List(ctx)
	if err != nil {
		return nil, err
	}
	groups := make(map[interface{}][]*Entity)
	for _, entity := range entities {
		key, err := fieldpath.Get(entity.data, path)
		if err != nil {
			return nil, fmt.Errorf("%w: grouping field %q missing from a %q document", ErrResult, path, qs.coll.name)
		}
		if key != nil && !reflect.TypeOf(key).Comparable() {
			return nil, fmt.Errorf("%w: grouping field %q holds an unhashable %T value", ErrResult, path, key)
		}
		groups[key] = append(groups[key], entity)
	}
	return groups, nil
}

// Iter streams entities off a driver cursor. The usual shape:
//
//	it, err := qs.Iter(ctx)
//	if err != nil { ... }
//	defer it.Close(ctx)
//	for it.Next(ctx) {
//		entity := it.Entity()
//		...
//	}
//	if err := it.Err(); err != nil { ... }
type Iter struct {
	coll    *Collection
	cursor  driver.Cursor
	current *Entity
	err     error
}

// Next advances to the next entity. It returns false at the end of the
// result set or on the first error; check Err after the loop.
func (it *Iter) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if !it.cursor.Next(ctx) {
		it.err = it.cursor.Err()
		return false
	}
	entity, err := it.coll.wrap(it.cursor.Document())
	if err != nil {
		it.err = err
		return false
	}
	it.current = entity
	return true
}

// Entity returns the entity produced by the last successful Next.
func (it *Iter) Entity() *Entity { return it.current }

// Err returns the first error hit while iterating.
func (it *Iter) Err() error { return it.err }

// Close releases the underlying cursor.
func (it *Iter) Close(ctx context.Context) error {
	return it.cursor.Close(ctx)
}
