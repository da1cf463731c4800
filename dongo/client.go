package dongo

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dongo-odm/dongo/dongo/driver"
	"github.com/dongo-odm/dongo/dongo/query"
)

// P is a keyword predicate set: filter or update terms keyed by field
// path ("account__plan"), optionally suffixed with one comparison
// operator ("age__gte"), plus "__"-prefixed option keys.
type P = query.Predicates

// Client pairs a store driver with a collection registry. Collections
// are declared through Collection; each declaration registers the
// handle for reference resolution, silently replacing any previous
// registration under the same collection name.
type Client struct {
	drv driver.Driver
	cfg Config

	mu       sync.RWMutex
	registry map[string]*Collection
}

// NewClient validates cfg and wraps drv. The driver is an external
// collaborator; the client never dials anything itself.
func NewClient(drv driver.Driver, cfg Config) (*Client, error) {
	if drv == nil {
		return nil, fmt.Errorf("%w: nil driver", ErrConnect)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		drv:      drv,
		cfg:      cfg,
		registry: make(map[string]*Collection),
	}, nil
}

// Driver exposes the underlying store driver.
func (c *Client) Driver() driver.Driver { return c.drv }

// Config returns the client's validated configuration.
func (c *Client) Config() Config { return c.cfg }

// CollectionConfig declares one entity type's collection.
type CollectionConfig struct {
	// Name is the collection name. Required.
	Name string

	// Database overrides the client's default database.
	Database string

	// UseUUID assigns a secondary identifier on insert, derived from
	// the primary identifier.
	UseUUID bool
}

// Collection declares a collection handle and registers it for
// reference resolution.
func (c *Client) Collection(cfg CollectionConfig) (*Collection, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: collection name is required", ErrCollection)
	}
	database := cfg.Database
	if database == "" {
		database = c.cfg.Database
	}
	if database == "" {
		return nil, fmt.Errorf("%w: collection %q needs a database since the client has no default", ErrCollection, cfg.Name)
	}
	coll := &Collection{
		client:   c,
		database: database,
		name:     cfg.Name,
		useUUID:  cfg.UseUUID,
	}
	c.mu.Lock()
	c.registry[cfg.Name] = coll
	c.mu.Unlock()
	return coll, nil
}

// lookup returns the registered handle for a collection name, or nil.
func (c *Client) lookup(name string) *Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry[name]
}

// CollectionNames lists the registered collection names, sorted.
func (c *Client) CollectionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.registry))
	for name := range c.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
