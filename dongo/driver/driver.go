// Package driver defines the contract between the ODM core and a
// document-store driver. The core only builds query and update
// descriptors; everything that touches the wire (connections, cursors,
// actual reads and writes) lives behind the Driver interface.
//
// Descriptors use the store's native shapes: filters and updates are
// plain nested maps with "$"-prefixed operator keys, selectors are
// single-field identity filters, and batched writes are ordered lists
// of WriteModel variants.
package driver

import "context"

// Document is one raw stored document, as handed back by a driver.
type Document = map[string]interface{}

// Namespace addresses one collection within one database.
type Namespace struct {
	Database   string
	Collection string
}

func (ns Namespace) String() string {
	return ns.Database + "." + ns.Collection
}

// SortField is one ordered-field-direction element of a sort spec.
type SortField struct {
	Key        string
	Descending bool
}

// Asc builds an ascending sort field.
func Asc(key string) SortField { return SortField{Key: key} }

// Desc builds a descending sort field.
func Desc(key string) SortField { return SortField{Key: key, Descending: true} }

// FindOptions carries the query options separated from the query terms.
type FindOptions struct {
	Sort  []SortField
	Limit *int64
	Skip  *int64

	// NoCursorTimeout asks the driver to keep the server-side cursor
	// alive past its idle timeout. The core performs no enforcement of
	// its own; this is pass-through.
	NoCursorTimeout bool

	// Extra holds option keys the core does not recognize. Drivers may
	// interpret or ignore them.
	Extra map[string]interface{}
}

// UpdateResult summarizes an update execution.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// DeleteResult summarizes a delete execution.
type DeleteResult struct {
	DeletedCount int64
}

// BulkResult summarizes one BulkWrite round trip.
type BulkResult struct {
	InsertedCount int64
	MatchedCount  int64
	ModifiedCount int64
	DeletedCount  int64
}

// BulkOptions configures a BulkWrite call.
type BulkOptions struct {
	// Ordered stops at the first failing operation when true.
	Ordered bool

	// BypassDocumentValidation skips server-side document validation
	// for drivers that support it.
	BypassDocumentValidation bool
}

// Cursor is a lazy result sequence. Each element is materialized on
// demand; the sequence is not restartable.
type Cursor interface {
	// Next advances the cursor, reporting whether a document is
	// available via Document.
	Next(ctx context.Context) bool

	// Document returns the current document. Only valid after a Next
	// call that returned true.
	Document() Document

	// Err returns the error that terminated iteration, if any.
	Err() error

	// Close releases the cursor's resources.
	Close(ctx context.Context) error
}

// WriteModel is one deferred operation inside a BulkWrite. The concrete
// variants map 1:1 to driver-native operation types.
type WriteModel interface {
	writeModel()
}

// UpdateOneModel applies an update document to the first document
// matching Selector.
type UpdateOneModel struct {
	Selector map[string]interface{}
	Update   map[string]interface{}
	Upsert   bool
}

// ReplaceOneModel replaces the whole document matching Selector.
type ReplaceOneModel struct {
	Selector    map[string]interface{}
	Replacement map[string]interface{}
	Upsert      bool
}

// DeleteOneModel deletes the first document matching Selector.
type DeleteOneModel struct {
	Selector map[string]interface{}
}

// DeleteManyModel deletes every document matching Filter.
type DeleteManyModel struct {
	Filter map[string]interface{}
}

func (*UpdateOneModel) writeModel()  {}
func (*ReplaceOneModel) writeModel() {}
func (*DeleteOneModel) writeModel()  {}
func (*DeleteManyModel) writeModel() {}

// Driver is the document-store collaborator. Implementations are
// expected to be safe for concurrent use.
//
// FindOne returns (nil, nil) when nothing matches; "no document" is an
// ordinary outcome, not an error. BulkWrite applies the models in order
// as one round trip when Ordered is set.
type Driver interface {
	Find(ctx context.Context, ns Namespace, filter map[string]interface{}, opts FindOptions) (Cursor, error)
	FindOne(ctx context.Context, ns Namespace, filter map[string]interface{}, opts FindOptions) (Document, error)
	Count(ctx context.Context, ns Namespace, filter map[string]interface{}, opts FindOptions) (int64, error)

	UpdateOne(ctx context.Context, ns Namespace, selector, update map[string]interface{}) (*UpdateResult, error)
	UpdateMany(ctx context.Context, ns Namespace, filter, update map[string]interface{}) (*UpdateResult, error)
	DeleteOne(ctx context.Context, ns Namespace, selector map[string]interface{}) (*DeleteResult, error)
	DeleteMany(ctx context.Context, ns Namespace, filter map[string]interface{}) (*DeleteResult, error)

	InsertOne(ctx context.Context, ns Namespace, doc Document) (string, error)
	InsertMany(ctx context.Context, ns Namespace, docs []Document) ([]string, error)
	BulkWrite(ctx context.Context, ns Namespace, models []WriteModel, opts BulkOptions) (*BulkResult, error)
}
