// Package dongo is a query-composition and deferred-write layer over a
// schemaless document store. Callers express filters and updates as
// keyword predicate sets, compose them with boolean AND/OR roots, and
// buffer per-entity or multi-entity mutations for one batched write.
// Typed cross-collection references dereference lazily through a
// per-client collection registry.
//
//	Getting started
//
// Wire a driver, declare collections, and filter:
//
//	drv, _ := memdriver.Open()
//	client, _ := dongo.NewClient(drv, dongo.Config{Database: "mydb"})
//	people, _ := client.Collection(dongo.CollectionConfig{Name: "people", UseUUID: true})
//
//	adults, err := people.Filter(dongo.P{"age__gte": 21}).List(ctx)
//
// Predicate keys address nested fields with "__" separators and may
// carry one trailing comparison-operator suffix:
//
//	people.Filter(dongo.P{
//		"account__plan":   "free",   // nested equality
//		"age__gt":         50,       // comparison
//		"color__nin":      []interface{}{"red", "blue"},
//		"name__regex":     "^j",
//	})
//
//	Deferred writes
//
// A LazyUpdater buffers single-entity field updates, mirroring them
// into the entity's in-memory data so local reads stay consistent with
// unsaved state. A Bulk buffers heterogeneous operations against a
// collection. Both flush everything as one batched write on Save, and
// either can be drained into a Bulk so one Save covers all of it:
//
//	lazy := person.Lazy()
//	_ = lazy.SetPath("account.plan", "premium")
//
//	bulk := people.Bulk()
//	_ = bulk.IncOne(other, dongo.P{"age": 1})
//	_ = bulk.Take(lazy)
//	_, err := bulk.Save(ctx)
//
// Bulk-level increments and replacements do not touch entity memory;
// Collection.RefreshAllFromDB reconciles entities after such a save.
//
//	References
//
// Entity.Ref returns the persisted wire shape {_dref, _coll}, and
// Client.DerefSingle / Client.DerefMany resolve references back into
// entities through the client's collection registry.
package dongo
