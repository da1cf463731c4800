package dongo

import (
	"context"
	"fmt"

	"github.com/dongo-odm/dongo/dongo/driver"
)

// Collection is the handle for one entity type: a named collection in
// one database, plus the identity policy applied on insert.
type Collection struct {
	client   *Client
	database string
	name     string
	useUUID  bool
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Namespace addresses the collection for the driver.
func (c *Collection) Namespace() driver.Namespace {
	return driver.Namespace{Database: c.database, Collection: c.name}
}

// New wraps data in an Entity without persisting anything.
func (c *Collection) New(data map[string]interface{}) *Entity {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Entity{coll: c, data: data}
}

// wrap decodes a raw driver document into an Entity, validating the
// reserved identifier fields.
func (c *Collection) wrap(doc driver.Document) (*Entity, error) {
	if doc == nil {
		return nil, nil
	}
	for _, key := range []string{"_id", "_uuid"} {
		if val, ok := doc[key]; ok {
			if _, ok := val.(string); !ok {
				return nil, fmt.Errorf("dongo: document in %q has non-string %s (%T)", c.name, key, val)
			}
		}
	}
	return &Entity{coll: c, data: doc}, nil
}

// Create builds an entity from data and inserts it immediately.
func (c *Collection) Create(ctx context.Context, data map[string]interface{}) (*Entity, error) {
	entity := c.New(data)
	if _, err := entity.Insert(ctx); err != nil {
		return nil, err
	}
	return entity, nil
}

// BulkCreate inserts entities in one round trip. When the collection
// assigns secondary identifiers, the derived values are written back
// in one follow-up batched update and mirrored into each entity.
func (c *Collection) BulkCreate(ctx context.Context, entities []*Entity) ([]string, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	docs := make([]driver.Document, len(entities))
	for i, entity := range entities {
		docs[i] = entity.data
	}
	ids, err := c.client.drv.InsertMany(ctx, c.Namespace(), docs)
	if err != nil {
		return ids, err
	}
	var updates []driver.WriteModel
	for i, id := range ids {
		entity := entities[i]
		entity.data["_id"] = id
		if !c.useUUID {
			continue
		}
		if _, pre := entity.data["_uuid"]; pre {
			continue
		}
		derived := uuidFromID(id).String()
		entity.data["_uuid"] = derived
		updates = append(updates, &driver.UpdateOneModel{
			Selector: map[string]interface{}{"_id": id},
			Update:   map[string]interface{}{"$set": map[string]interface{}{"_uuid": derived}},
		})
	}
	if len(updates) > 0 {
		opts := driver.BulkOptions{Ordered: true, BypassDocumentValidation: true}
		if _, err := c.client.drv.BulkWrite(ctx, c.Namespace(), updates, opts); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

// Filter builds a QuerySet from a predicate set.
func (c *Collection) Filter(preds P) *QuerySet {
	return newQuerySet(c, preds)
}

// FilterOr returns a QuerySet with an empty OR root, ready for
// Compose:
//
//	qs := people.FilterOr()
//	_ = qs.Compose(people.Filter(dongo.P{"age": 21}))
//	_ = qs.Compose(people.Filter(dongo.P{"age": 18}))
func (c *Collection) FilterOr() *QuerySet {
	return emptyQuerySet(c, true)
}

// FilterAnd returns a QuerySet with an empty AND root.
func (c *Collection) FilterAnd() *QuerySet {
	return emptyQuerySet(c, false)
}

// GetOne fetches the single document matching preds. Zero or duplicate
// matches are ErrResult.
func (c *Collection) GetOne(ctx context.Context, preds P) (*Entity, error) {
	two := int64(2)
	qs := c.Filter(preds)
	qs.opts.Limit = &two
	results, err := qs.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("%w: %q expected exactly one match, found %d", ErrResult, c.name, len(results))
	}
	return results[0], nil
}

// ByUUID finds the entity with the secondary identifier, or nil.
func (c *Collection) ByUUID(ctx context.Context, val interface{}) (*Entity, error) {
	u, err := ToUUID(val)
	if err != nil {
		return nil, err
	}
	return c.Filter(P{"_uuid": u.String()}).First(ctx)
}

// ByUUIDs finds the entities matching a list of secondary identifiers.
func (c *Collection) ByUUIDs(ctx context.Context, vals []interface{}) ([]*Entity, error) {
	ids, err := c.uuidStrings(vals)
	if err != nil {
		return nil, err
	}
	return c.Filter(P{"_uuid__in": anySlice(ids)}).List(ctx)
}

// MapByUUIDs resolves a list of secondary identifiers into a map keyed
// by canonical uuid string, with nil entries for absent documents.
func (c *Collection) MapByUUIDs(ctx context.Context, vals []interface{}) (map[string]*Entity, error) {
	ids, err := c.uuidStrings(vals)
	if err != nil {
		return nil, err
	}
	results := make(map[string]*Entity, len(ids))
	for _, id := range ids {
		results[id] = nil
	}
	found, err := c.Filter(P{"_uuid__in": anySlice(ids)}).List(ctx)
	if err != nil {
		return nil, err
	}
	for _, entity := range found {
		results[entity.UUID()] = entity
	}
	return results, nil
}

func (c *Collection) uuidStrings(vals []interface{}) ([]string, error) {
	ids := make([]string, 0, len(vals))
	for _, val := range vals {
		u, err := ToUUID(val)
		if err != nil {
			return nil, err
		}
		ids = append(ids, u.String())
	}
	return ids, nil
}

// ByID finds the entity with the primary identifier, or nil.
func (c *Collection) ByID(ctx context.Context, id string) (*Entity, error) {
	return c.Filter(P{"_id": id}).First(ctx)
}

// ByIDs finds the entities matching a list of primary identifiers.
func (c *Collection) ByIDs(ctx context.Context, ids []string) ([]*Entity, error) {
	return c.Filter(P{"_id__in": anySlice(ids)}).List(ctx)
}

// MapByIDs resolves a list of primary identifiers into a map with nil
// entries for absent documents.
func (c *Collection) MapByIDs(ctx context.Context, ids []string) (map[string]*Entity, error) {
	results := make(map[string]*Entity, len(ids))
	for _, id := range ids {
		results[id] = nil
	}
	found, err := c.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, entity := range found {
		results[entity.ID()] = entity
	}
	return results, nil
}

// Bulk starts an empty operation batch against this collection.
func (c *Collection) Bulk() *Bulk {
	return &Bulk{coll: c}
}

// RefreshAllFromDB re-fetches entities by primary identifier in one
// query and replaces their in-memory data in place. Entities whose
// documents no longer exist are left untouched. This is the
// reconciliation path after batched writes that bypass per-instance
// mirroring (bulk increments and replacements).
func (c *Collection) RefreshAllFromDB(ctx context.Context, entities []*Entity) error {
	if len(entities) == 0 {
		return nil
	}
	ids := make([]interface{}, 0, len(entities))
	for _, entity := range entities {
		id := entity.ID()
		if id == "" {
			return fmt.Errorf("%w: cannot refresh an entity without a primary identifier", ErrNoIdentity)
		}
		ids = append(ids, id)
	}
	fetched, err := c.Filter(P{"_id__in": ids}).List(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]driver.Document, len(fetched))
	for _, entity := range fetched {
		byID[entity.ID()] = entity.data
	}
	for _, entity := range entities {
		if doc, ok := byID[entity.ID()]; ok {
			entity.data = doc
		}
	}
	return nil
}

func anySlice[T any](vals []T) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
