// Package memdriver is an in-process implementation of the driver
// contract. It keeps every namespace as an insertion-ordered document
// map guarded by one RWMutex, evaluates the full comparison-operator
// vocabulary client-side, and can optionally persist snapshots to disk
// (see snapshot.go).
//
// It exists so the ODM can be exercised end to end without a server:
// tests and the inspection CLI both run against it.
package memdriver

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/dongo-odm/dongo/dongo/driver"
)

// Driver implements driver.Driver against in-memory state.
type Driver struct {
	mu         sync.RWMutex
	namespaces map[string]*collection

	path   string
	lock   *flock.Flock
	logger *slog.Logger

	machine [5]byte
	counter uint32
}

// collection is one namespace's documents, kept in insertion order so
// unsorted finds and "first match" semantics are deterministic.
type collection struct {
	docs  map[string]driver.Document
	order []string
}

// Option configures a Driver at Open time.
type Option func(*Driver)

// WithSnapshotFile enables snapshot persistence at path. Existing data
// is loaded during Open; Flush and Close write it back.
func WithSnapshotFile(path string) Option {
	return func(d *Driver) { d.path = path }
}

// WithLogger sets the driver's logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// Open creates a driver, loading the snapshot file when one is
// configured and present.
func Open(opts ...Option) (*Driver, error) {
	d := &Driver{
		namespaces: make(map[string]*collection),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if _, err := rand.Read(d.machine[:]); err != nil {
		return nil, fmt.Errorf("memdriver: seeding id generator: %w", err)
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.path != "" {
		d.lock = flock.New(d.path + ".lock")
		if err := d.load(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Close flushes the snapshot, if persistence is configured.
func (d *Driver) Close() error {
	return d.Flush()
}

// Stats reports the known namespaces and their document counts, in
// sorted namespace order.
func (d *Driver) Stats() []NamespaceStat {
	d.mu.RLock()
	defer d.mu.RUnlock()
	stats := make([]NamespaceStat, 0, len(d.namespaces))
	for key, c := range d.namespaces {
		stats = append(stats, NamespaceStat{Namespace: key, Documents: len(c.docs)})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Namespace < stats[j].Namespace })
	return stats
}

// NamespaceStat is one entry of a Stats report.
type NamespaceStat struct {
	Namespace string
	Documents int
}

// coll returns the namespace's collection, creating it on first write.
func (d *Driver) coll(ns driver.Namespace, create bool) *collection {
	key := ns.String()
	c, ok := d.namespaces[key]
	if !ok && create {
		c = &collection{docs: make(map[string]driver.Document)}
		d.namespaces[key] = c
	}
	return c
}

// newObjectID generates a 12-byte hex id: 4-byte unix timestamp, 5
// random machine bytes, 3-byte counter.
func (d *Driver) newObjectID() string {
	var b [12]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(time.Now().Unix()))
	copy(b[4:9], d.machine[:])
	c := atomic.AddUint32(&d.counter, 1)
	b[9] = byte(c >> 16)
	b[10] = byte(c >> 8)
	b[11] = byte(c)
	return hex.EncodeToString(b[:])
}

// matched returns the collection's matching documents in insertion
// order, with sort, skip and limit applied. Documents are deep copies;
// callers own the results.
func (d *Driver) matched(ns driver.Namespace, filter map[string]interface{}, opts driver.FindOptions) []driver.Document {
	c := d.coll(ns, false)
	if c == nil {
		return nil
	}
	var out []driver.Document
	for _, id := range c.order {
		if matchFilter(c.docs[id], filter) {
			out = append(out, c.docs[id])
		}
	}
	if len(opts.Sort) > 0 {
		sortDocuments(out, opts.Sort)
	}
	if opts.Skip != nil && *opts.Skip > 0 {
		if int(*opts.Skip) >= len(out) {
			out = nil
		} else {
			out = out[*opts.Skip:]
		}
	}
	if opts.Limit != nil && *opts.Limit >= 0 && int(*opts.Limit) < len(out) {
		out = out[:*opts.Limit]
	}
	copies := make([]driver.Document, len(out))
	for i, doc := range out {
		copies[i] = deepCopy(doc).(driver.Document)
	}
	return copies
}

// Find returns a cursor over the matching documents.
func (d *Driver) Find(ctx context.Context, ns driver.Namespace, filter map[string]interface{}, opts driver.FindOptions) (driver.Cursor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	docs := d.matched(ns, filter, opts)
	d.logger.Debug("find", "ns", ns.String(), "matched", len(docs))
	return &memCursor{docs: docs, pos: -1}, nil
}

// FindOne returns the first matching document, or (nil, nil) when
// nothing matches.
func (d *Driver) FindOne(ctx context.Context, ns driver.Namespace, filter map[string]interface{}, opts driver.FindOptions) (driver.Document, error) {
	one := int64(1)
	opts.Limit = &one
	d.mu.RLock()
	defer d.mu.RUnlock()
	docs := d.matched(ns, filter, opts)
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// Count returns the number of matching documents, honoring skip and
// limit when set.
func (d *Driver) Count(ctx context.Context, ns driver.Namespace, filter map[string]interface{}, opts driver.FindOptions) (int64, error) {
	opts.Sort = nil
	d.mu.RLock()
	defer d.mu.RUnlock()
	return int64(len(d.matched(ns, filter, opts))), nil
}

// InsertOne stores a copy of doc, assigning a fresh _id when the
// document carries none, and returns the primary identifier.
func (d *Driver) InsertOne(ctx context.Context, ns driver.Namespace, doc driver.Document) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.insertLocked(ns, doc)
}

// InsertMany stores copies of docs in order and returns their ids.
func (d *Driver) InsertMany(ctx context.Context, ns driver.Namespace, docs []driver.Document) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id, err := d.insertLocked(ns, doc)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *Driver) insertLocked(ns driver.Namespace, doc driver.Document) (string, error) {
	c := d.coll(ns, true)
	stored := deepCopy(doc).(driver.Document)
	id, ok := stored["_id"].(string)
	if !ok || id == "" {
		id = d.newObjectID()
		stored["_id"] = id
	}
	if _, exists := c.docs[id]; exists {
		return "", fmt.Errorf("memdriver: duplicate _id %q in %s", id, ns)
	}
	c.docs[id] = stored
	c.order = append(c.order, id)
	return id, nil
}

// UpdateOne applies update to the first document matching selector.
func (d *Driver) UpdateOne(ctx context.Context, ns driver.Namespace, selector, update map[string]interface{}) (*driver.UpdateResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updateLocked(ns, selector, update, true)
}

// UpdateMany applies update to every document matching filter.
func (d *Driver) UpdateMany(ctx context.Context, ns driver.Namespace, filter, update map[string]interface{}) (*driver.UpdateResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updateLocked(ns, filter, update, false)
}

func (d *Driver) updateLocked(ns driver.Namespace, filter, update map[string]interface{}, single bool) (*driver.UpdateResult, error) {
	res := &driver.UpdateResult{}
	c := d.coll(ns, false)
	if c == nil {
		return res, nil
	}
	for _, id := range c.order {
		if !matchFilter(c.docs[id], filter) {
			continue
		}
		res.MatchedCount++
		changed, err := applyUpdate(c.docs[id], update)
		if err != nil {
			return res, err
		}
		if changed {
			res.ModifiedCount++
		}
		if single {
			break
		}
	}
	return res, nil
}

// DeleteOne removes the first document matching selector.
func (d *Driver) DeleteOne(ctx context.Context, ns driver.Namespace, selector map[string]interface{}) (*driver.DeleteResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleteLocked(ns, selector, true), nil
}

// DeleteMany removes every document matching filter.
func (d *Driver) DeleteMany(ctx context.Context, ns driver.Namespace, filter map[string]interface{}) (*driver.DeleteResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleteLocked(ns, filter, false), nil
}

func (d *Driver) deleteLocked(ns driver.Namespace, filter map[string]interface{}, single bool) *driver.DeleteResult {
	res := &driver.DeleteResult{}
	c := d.coll(ns, false)
	if c == nil {
		return res
	}
	kept := c.order[:0]
	for _, id := range c.order {
		if (single && res.DeletedCount > 0) || !matchFilter(c.docs[id], filter) {
			kept = append(kept, id)
			continue
		}
		delete(c.docs, id)
		res.DeletedCount++
	}
	c.order = kept
	return res
}

// BulkWrite applies models in order as one batch. An ordered batch
// stops at the first failing operation; the partial result is returned
// alongside the error.
func (d *Driver) BulkWrite(ctx context.Context, ns driver.Namespace, models []driver.WriteModel, opts driver.BulkOptions) (*driver.BulkResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := &driver.BulkResult{}
	for i, model := range models {
		var err error
		switch m := model.(type) {
		case *driver.UpdateOneModel:
			var ur *driver.UpdateResult
			ur, err = d.updateLocked(ns, m.Selector, m.Update, true)
			if ur != nil {
				res.MatchedCount += ur.MatchedCount
				res.ModifiedCount += ur.ModifiedCount
			}
		case *driver.ReplaceOneModel:
			err = d.replaceLocked(ns, m.Selector, m.Replacement, res)
		case *driver.DeleteOneModel:
			res.DeletedCount += d.deleteLocked(ns, m.Selector, true).DeletedCount
		case *driver.DeleteManyModel:
			res.DeletedCount += d.deleteLocked(ns, m.Filter, false).DeletedCount
		default:
			err = fmt.Errorf("memdriver: unsupported write model %T", model)
		}
		if err != nil {
			if opts.Ordered {
				return res, fmt.Errorf("memdriver: bulk op %d: %w", i, err)
			}
			d.logger.Warn("bulk op failed", "ns", ns.String(), "op", i, "err", err)
		}
	}
	d.logger.Debug("bulk write", "ns", ns.String(), "ops", len(models))
	return res, nil
}

func (d *Driver) replaceLocked(ns driver.Namespace, selector, replacement map[string]interface{}, res *driver.BulkResult) error {
	c := d.coll(ns, false)
	if c == nil {
		return nil
	}
	for _, id := range c.order {
		if !matchFilter(c.docs[id], selector) {
			continue
		}
		stored := deepCopy(replacement).(driver.Document)
		// Replacement never changes the primary identifier.
		stored["_id"] = c.docs[id]["_id"]
		c.docs[id] = stored
		res.MatchedCount++
		res.ModifiedCount++
		return nil
	}
	return nil
}

// memCursor iterates a materialized result slice.
type memCursor struct {
	docs []driver.Document
	pos  int
}

func (c *memCursor) Next(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	c.pos++
	return c.pos < len(c.docs)
}

func (c *memCursor) Document() driver.Document {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return nil
	}
	return c.docs[c.pos]
}

func (c *memCursor) Err() error { return nil }

func (c *memCursor) Close(ctx context.Context) error {
	c.docs = nil
	return nil
}

// deepCopy clones nested maps and slices so stored documents never
// alias caller-owned memory.
func deepCopy(val interface{}) interface{} {
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, inner := range v {
			out[key] = deepCopy(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, inner := range v {
			out[i] = deepCopy(inner)
		}
		return out
	default:
		return val
	}
}
