package dongo

import (
	"context"
	"fmt"

	"github.com/dongo-odm/dongo/dongo/driver"
	"github.com/dongo-odm/dongo/dongo/query"
	"github.com/dongo-odm/dongo/internal/fieldpath"
)

// Entity is a single document bound to its collection. It wraps the
// raw data map directly, so reads cost nothing and writes to the
// store can mirror into memory.
type Entity struct {
	coll *Collection
	data map[string]interface{}
}

// Collection returns the collection the entity is bound to.
func (e *Entity) Collection() *Collection { return e.coll }

// Data exposes the underlying document map. Mutating it bypasses the
// store; prefer SetPath, SetFields and Inc for persisted changes.
func (e *Entity) Data() map[string]interface{} { return e.data }

// ID returns the primary identifier, or "" before the first insert.
func (e *Entity) ID() string {
	if id, ok := e.data["_id"].(string); ok {
		return id
	}
	return ""
}

// UUID returns the secondary identifier, or "".
func (e *Entity) UUID() string {
	if u, ok := e.data["_uuid"].(string); ok {
		return u
	}
	return ""
}

// Get reads a dotted path from the document.
func (e *Entity) Get(path string) (interface{}, error) {
	return fieldpath.Get(e.data, path)
}

// GetDefault reads a dotted path, substituting def when absent.
func (e *Entity) GetDefault(path string, def interface{}) interface{} {
	val, err := fieldpath.Get(e.data, path)
	if err != nil {
		return def
	}
	return val
}

// Contains reports whether a dotted path exists in the document.
func (e *Entity) Contains(path string) bool {
	return fieldpath.Contains(e.data, path)
}

// selector identifies the entity for targeted writes, preferring the
// primary identifier.
func (e *Entity) selector() (map[string]interface{}, error) {
	if id := e.ID(); id != "" {
		return map[string]interface{}{"_id": id}, nil
	}
	if u := e.UUID(); u != "" {
		return map[string]interface{}{"_uuid": u}, nil
	}
	return nil, fmt.Errorf("%w: entity has neither _id nor _uuid", ErrNoIdentity)
}

// SetPath writes one dotted path in the store and mirrors the change
// in memory. The in-memory mirror requires the intermediate maps to
// exist already.
func (e *Entity) SetPath(ctx context.Context, path string, value interface{}) (*driver.UpdateResult, error) {
	return e.SetFields(ctx, map[string]interface{}{path: value})
}

// SetFields applies a multi-field $set and mirrors each path locally.
// Keys use the keyword grammar, so nested paths may be spelled with
// "__" separators or literal dots.
func (e *Entity) SetFields(ctx context.Context, fields map[string]interface{}) (*driver.UpdateResult, error) {
	sel, err := e.selector()
	if err != nil {
		return nil, err
	}
	set := make(map[string]interface{}, len(fields))
	for term, value := range fields {
		path, _ := query.TranslateTerm(term, value)
		if err := fieldpath.Set(e.data, path, value); err != nil {
			return nil, err
		}
		set[path] = value
	}
	update := map[string]interface{}{"$set": set}
	return e.coll.client.drv.UpdateOne(ctx, e.coll.Namespace(), sel, update)
}

// Inc applies a $inc to one field term and mirrors the new total
// locally when the field holds a number.
func (e *Entity) Inc(ctx context.Context, term string, delta int64) (*driver.UpdateResult, error) {
	sel, err := e.selector()
	if err != nil {
		return nil, err
	}
	path, _ := query.TranslateTerm(term, nil)
	if current, err := fieldpath.Get(e.data, path); err == nil {
		switch n := current.(type) {
		case int:
			_ = fieldpath.Set(e.data, path, int64(n)+delta)
		case int64:
			_ = fieldpath.Set(e.data, path, n+delta)
		case float64:
			_ = fieldpath.Set(e.data, path, n+float64(delta))
		}
	}
	update := map[string]interface{}{"$inc": map[string]interface{}{path: delta}}
	return e.coll.client.drv.UpdateOne(ctx, e.coll.Namespace(), sel, update)
}

// Insert persists the entity and assigns its identifiers. The primary
// identifier always comes from the driver. When the collection derives
// secondary identifiers, a missing _uuid is computed from the new _id
// and written back; a pre-assigned _uuid is kept as-is.
func (e *Entity) Insert(ctx context.Context) (string, error) {
	_, preAssigned := e.data["_uuid"]
	id, err := e.coll.client.drv.InsertOne(ctx, e.coll.Namespace(), e.data)
	if err != nil {
		return "", err
	}
	e.data["_id"] = id
	if e.coll.useUUID && !preAssigned {
		derived := uuidFromID(id).String()
		e.data["_uuid"] = derived
		sel := map[string]interface{}{"_id": id}
		update := map[string]interface{}{"$set": map[string]interface{}{"_uuid": derived}}
		if _, err := e.coll.client.drv.UpdateOne(ctx, e.coll.Namespace(), sel, update); err != nil {
			return id, err
		}
	}
	return id, nil
}

// Delete removes the entity's document. The in-memory data is kept so
// the caller can still inspect or re-insert it.
func (e *Entity) Delete(ctx context.Context) (*driver.DeleteResult, error) {
	sel, err := e.selector()
	if err != nil {
		return nil, err
	}
	return e.coll.client.drv.DeleteOne(ctx, e.coll.Namespace(), sel)
}

// RefreshFromDB replaces the in-memory data with the stored document.
func (e *Entity) RefreshFromDB(ctx context.Context) error {
	sel, err := e.selector()
	if err != nil {
		return err
	}
	doc, err := e.coll.client.drv.FindOne(ctx, e.coll.Namespace(), sel, driver.FindOptions{})
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: document for %v is gone", ErrNotFound, sel)
	}
	e.data = doc
	return nil
}

// Ref builds the portable reference for this entity, preferring the
// secondary identifier.
func (e *Entity) Ref() (*Ref, error) {
	if u := e.UUID(); u != "" {
		return &Ref{ID: u, Collection: e.coll.name}, nil
	}
	if id := e.ID(); id != "" {
		return &Ref{ID: id, Collection: e.coll.name}, nil
	}
	return nil, fmt.Errorf("%w: cannot reference an entity with no identifier", ErrNoIdentity)
}

// Lazy starts a deferred updater that batches writes against this
// entity until Save.
func (e *Entity) Lazy() *LazyUpdater {
	return &LazyUpdater{entity: e, bulk: Bulk{coll: e.coll}}
}
