package dongo

import (
	"context"
	"fmt"

	"github.com/dongo-odm/dongo/dongo/driver"
	"github.com/dongo-odm/dongo/dongo/query"
	"github.com/dongo-odm/dongo/internal/fieldpath"
)

// Donor is anything holding queued write operations that can be
// drained into a Bulk: another Bulk, or a LazyUpdater.
type Donor interface {
	collection() *Collection
	drain() []driver.WriteModel
}

// Bulk queues write operations against one collection and flushes them
// in a single driver round trip on Save. Field updates queued through
// UpdateOne are mirrored into the target entity immediately, so reads
// between queue and flush see the pending value. Increments and
// replacements are not mirrored; reconcile with
// Collection.RefreshAllFromDB after Save when the in-memory copies
// matter.
type Bulk struct {
	coll *Collection
	ops  []driver.WriteModel
}

// Len reports how many operations are queued.
func (b *Bulk) Len() int { return len(b.ops) }

func (b *Bulk) collection() *Collection { return b.coll }

// drain hands off the queued operations and empties the batch.
func (b *Bulk) drain() []driver.WriteModel {
	ops := b.ops
	b.ops = nil
	return ops
}

// Take drains every queued operation out of donor into this batch. The
// donor must be bound to the same collection; afterwards it is empty
// and reusable.
func (b *Bulk) Take(donor Donor) error {
	if donor.collection() != b.coll {
		return fmt.Errorf("%w: cannot merge operations across collections", ErrCollection)
	}
	b.ops = append(b.ops, donor.drain()...)
	return nil
}

// UpdateOne queues a $set against one entity and mirrors each field
// into its in-memory data. Paths whose intermediate maps do not exist
// locally fail before anything is queued.
func (b *Bulk) UpdateOne(e *Entity, fields P) error {
	sel, err := e.selector()
	if err != nil {
		return err
	}
	set := make(map[string]interface{}, len(fields))
	for term, val := range fields {
		path, _ := query.TranslateTerm(term, val)
		if err := fieldpath.Set(e.data, path, val); err != nil {
			return err
		}
		set[path] = val
	}
	b.ops = append(b.ops, &driver.UpdateOneModel{
		Selector: sel,
		Update:   map[string]interface{}{"$set": set},
	})
	return nil
}

// IncOne queues a $inc against one entity. The in-memory data is left
// stale until RefreshAllFromDB.
func (b *Bulk) IncOne(e *Entity, deltas P) error {
	sel, err := e.selector()
	if err != nil {
		return err
	}
	inc := make(map[string]interface{}, len(deltas))
	for term, val := range deltas {
		path, _ := query.TranslateTerm(term, val)
		inc[path] = val
	}
	b.ops = append(b.ops, &driver.UpdateOneModel{
		Selector: sel,
		Update:   map[string]interface{}{"$inc": inc},
	})
	return nil
}

// ReplaceOne queues a whole-document replacement for one entity. The
// in-memory data is left stale until RefreshAllFromDB.
func (b *Bulk) ReplaceOne(e *Entity, doc map[string]interface{}) error {
	sel, err := e.selector()
	if err != nil {
		return err
	}
	b.ops = append(b.ops, &driver.ReplaceOneModel{Selector: sel, Replacement: doc})
	return nil
}

// DeleteOne queues the removal of one entity's document.
func (b *Bulk) DeleteOne(e *Entity) error {
	sel, err := e.selector()
	if err != nil {
		return err
	}
	b.ops = append(b.ops, &driver.DeleteOneModel{Selector: sel})
	return nil
}

// DeleteMany queues the removal of every document matching preds.
func (b *Bulk) DeleteMany(preds P) {
	node, _ := query.Build(query.Predicates(preds))
	b.ops = append(b.ops, &driver.DeleteManyModel{Filter: map[string]interface{}(node)})
}

// Save flushes the queued operations in one ordered batch. An empty
// batch is a no-op returning (nil, nil). The queue is cleared only
// when the flush succeeds, so a failed Save can be retried.
func (b *Bulk) Save(ctx context.Context) (*driver.BulkResult, error) {
	if len(b.ops) == 0 {
		return nil, nil
	}
	result, err := b.coll.client.drv.BulkWrite(ctx, b.coll.Namespace(), b.ops, driver.BulkOptions{Ordered: true})
	if err != nil {
		return result, err
	}
	b.ops = nil
	return result, nil
}

// LazyUpdater batches writes against a single entity. Field updates
// are mirrored into the entity immediately; nothing reaches the store
// until Save. A LazyUpdater can also be drained into a wider Bulk via
// Bulk.Take, leaving it empty.
type LazyUpdater struct {
	entity *Entity
	bulk   Bulk
}

// Entity returns the entity this updater is bound to.
func (lu *LazyUpdater) Entity() *Entity { return lu.entity }

// Len reports how many operations are queued.
func (lu *LazyUpdater) Len() int { return lu.bulk.Len() }

func (lu *LazyUpdater) collection() *Collection { return lu.entity.coll }

func (lu *LazyUpdater) drain() []driver.WriteModel { return lu.bulk.drain() }

// SetPath queues a single-field $set, mirrored into the entity.
func (lu *LazyUpdater) SetPath(path string, value interface{}) error {
	return lu.SetFields(P{path: value})
}

// SetFields queues a multi-field $set, mirrored into the entity.
func (lu *LazyUpdater) SetFields(fields P) error {
	return lu.bulk.UpdateOne(lu.entity, fields)
}

// Inc queues a $inc. Unlike SetFields, the entity is not mirrored; the
// stored total is authoritative after Save.
func (lu *LazyUpdater) Inc(deltas P) error {
	return lu.bulk.IncOne(lu.entity, deltas)
}

// Combine drains this updater and other into a fresh Bulk, leaving
// both donors empty. The donors must share a collection.
func (lu *LazyUpdater) Combine(other Donor) (*Bulk, error) {
	if other.collection() != lu.entity.coll {
		return nil, fmt.Errorf("%w: cannot merge operations across collections", ErrCollection)
	}
	combined := &Bulk{coll: lu.entity.coll}
	combined.ops = append(combined.ops, lu.drain()...)
	combined.ops = append(combined.ops, other.drain()...)
	return combined, nil
}

// Save flushes the queued operations in one batch, clearing the queue
// on success. An empty queue returns (nil, nil).
func (lu *LazyUpdater) Save(ctx context.Context) (*driver.BulkResult, error) {
	return lu.bulk.Save(ctx)
}
