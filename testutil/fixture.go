// Package testutil provides a pre-populated store fixture shared by
// tests across packages. LoadUniverse spins up an in-memory driver,
// declares the fixture collections and seeds a small, well-known data
// set with typed handles, so tests assert against named entities
// instead of re-creating data.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dongo-odm/dongo/dongo"
	"github.com/dongo-odm/dongo/dongo/driver/memdriver"
)

// Universe gives typed access to the seeded fixture.
type Universe struct {
	Client *dongo.Client
	People *dongo.Collection
	Posts  *dongo.Collection

	// People. Joe and Jill share the color red with Bob split off; the
	// ages are spaced out so range operators have unambiguous answers.
	Joe  *dongo.Entity // age 20, color red, account.plan free
	Jill *dongo.Entity // age 30, color blue, account.plan paid
	Bob  *dongo.Entity // age 40, color red, account.plan paid

	// Posts referencing their authors through stored references.
	JoePost    *dongo.Entity // single author: Joe
	SharedPost *dongo.Entity // authors: Jill and Bob
}

// LoadUniverse builds a fresh fixture universe on an in-memory driver.
// The driver snapshot lives under t.TempDir, so nothing persists past
// the test.
func LoadUniverse(t *testing.T) *Universe {
	t.Helper()
	ctx := context.Background()

	drv, err := memdriver.Open(memdriver.WithSnapshotFile(filepath.Join(t.TempDir(), "universe.dngo")))
	if err != nil {
		t.Fatalf("open driver: %v", err)
	}
	t.Cleanup(func() { _ = drv.Close() })

	client, err := dongo.NewClient(drv, dongo.Config{Database: "testdb"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	people, err := client.Collection(dongo.CollectionConfig{Name: "people", UseUUID: true})
	if err != nil {
		t.Fatalf("declare people: %v", err)
	}
	posts, err := client.Collection(dongo.CollectionConfig{Name: "posts"})
	if err != nil {
		t.Fatalf("declare posts: %v", err)
	}

	u := &Universe{Client: client, People: people, Posts: posts}

	u.Joe = mustCreate(t, ctx, people, map[string]interface{}{
		"name":  "joe",
		"age":   int64(20),
		"color": "red",
		"account": map[string]interface{}{
			"plan":    "free",
			"credits": int64(5),
		},
	})
	u.Jill = mustCreate(t, ctx, people, map[string]interface{}{
		"name":  "jill",
		"age":   int64(30),
		"color": "blue",
		"account": map[string]interface{}{
			"plan":    "paid",
			"credits": int64(50),
		},
	})
	u.Bob = mustCreate(t, ctx, people, map[string]interface{}{
		"name":  "bob",
		"age":   int64(40),
		"color": "red",
		"account": map[string]interface{}{
			"plan":    "paid",
			"credits": int64(9),
		},
	})

	u.JoePost = mustCreate(t, ctx, posts, map[string]interface{}{
		"title":   "hello",
		"authors": []interface{}{mustRef(t, u.Joe)},
	})
	u.SharedPost = mustCreate(t, ctx, posts, map[string]interface{}{
		"title":   "collab",
		"authors": []interface{}{mustRef(t, u.Jill), mustRef(t, u.Bob)},
	})

	return u
}

func mustCreate(t *testing.T, ctx context.Context, coll *dongo.Collection, data map[string]interface{}) *dongo.Entity {
	t.Helper()
	entity, err := coll.Create(ctx, data)
	if err != nil {
		t.Fatalf("create in %s: %v", coll.Name(), err)
	}
	return entity
}

func mustRef(t *testing.T, entity *dongo.Entity) map[string]interface{} {
	t.Helper()
	ref, err := entity.Ref()
	if err != nil {
		t.Fatalf("ref: %v", err)
	}
	return ref.Encode()
}

// Names extracts the "name" field from a list of entities, in order.
func Names(t *testing.T, entities []*dongo.Entity) []string {
	t.Helper()
	names := make([]string, 0, len(entities))
	for _, entity := range entities {
		name, err := entity.Get("name")
		if err != nil {
			t.Fatalf("entity %s has no name", entity.ID())
		}
		names = append(names, name.(string))
	}
	return names
}
