package memdriver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dongo-odm/dongo/dongo/driver"
)

var testNS = driver.Namespace{Database: "testdb", Collection: "people"}

func seedPeople(t *testing.T, d *Driver) []string {
	t.Helper()
	ids, err := d.InsertMany(context.Background(), testNS, []driver.Document{
		{"name": "joe", "age": 20, "color": "red"},
		{"name": "jill", "age": 30, "color": "blue"},
		{"name": "bob", "age": 40, "color": "red"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	return ids
}

func collectNames(t *testing.T, cur driver.Cursor) []string {
	t.Helper()
	ctx := context.Background()
	var names []string
	for cur.Next(ctx) {
		names = append(names, cur.Document()["name"].(string))
	}
	require.NoError(t, cur.Err())
	require.NoError(t, cur.Close(ctx))
	return names
}

func TestInsertAssignsIDs(t *testing.T) {
	d, err := Open()
	require.NoError(t, err)

	id1, err := d.InsertOne(context.Background(), testNS, driver.Document{"name": "joe"})
	require.NoError(t, err)
	id2, err := d.InsertOne(context.Background(), testNS, driver.Document{"name": "jill"})
	require.NoError(t, err)

	assert.Len(t, id1, 24)
	assert.NotEqual(t, id1, id2)

	doc, err := d.FindOne(context.Background(), testNS, map[string]interface{}{"_id": id1}, driver.FindOptions{})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "joe", doc["name"])
}

func TestFindOperators(t *testing.T) {
	d, err := Open()
	require.NoError(t, err)
	seedPeople(t, d)
	ctx := context.Background()

	cases := []struct {
		name   string
		filter map[string]interface{}
		want   []string
	}{
		{"gte", map[string]interface{}{"age": map[string]interface{}{"$gte": 25}}, []string{"jill", "bob"}},
		{"lt", map[string]interface{}{"age": map[string]interface{}{"$lt": 30}}, []string{"joe"}},
		{"ne", map[string]interface{}{"color": map[string]interface{}{"$ne": "red"}}, []string{"jill"}},
		{"in", map[string]interface{}{"age": map[string]interface{}{"$in": []interface{}{20, 40}}}, []string{"joe", "bob"}},
		{"nin", map[string]interface{}{"color": map[string]interface{}{"$nin": []interface{}{"red"}}}, []string{"jill"}},
		{"regex", map[string]interface{}{"name": map[string]interface{}{"$regex": "^j"}}, []string{"joe", "jill"}},
		{"exists", map[string]interface{}{"color": map[string]interface{}{"$exists": true}}, []string{"joe", "jill", "bob"}},
		{"not exists", map[string]interface{}{"nope": map[string]interface{}{"$exists": true}}, nil},
		{"equality", map[string]interface{}{"color": "red"}, []string{"joe", "bob"}},
		{
			"or",
			map[string]interface{}{"$or": []interface{}{
				map[string]interface{}{"age": 20},
				map[string]interface{}{"age": 40},
			}},
			[]string{"joe", "bob"},
		},
		{
			"and",
			map[string]interface{}{"$and": []interface{}{
				map[string]interface{}{"color": "red"},
				map[string]interface{}{"age": map[string]interface{}{"$gt": 25}},
			}},
			[]string{"bob"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cur, err := d.Find(ctx, testNS, tc.filter, driver.FindOptions{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, collectNames(t, cur))
		})
	}
}

func TestSortSkipLimit(t *testing.T) {
	d, err := Open()
	require.NoError(t, err)
	seedPeople(t, d)
	ctx := context.Background()

	cur, err := d.Find(ctx, testNS, nil, driver.FindOptions{
		Sort: []driver.SortField{driver.Desc("age")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "jill", "joe"}, collectNames(t, cur))

	skip, limit := int64(1), int64(1)
	cur, err = d.Find(ctx, testNS, nil, driver.FindOptions{
		Sort:  []driver.SortField{driver.Asc("age")},
		Skip:  &skip,
		Limit: &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"jill"}, collectNames(t, cur))
}

func TestNestedPathsAndArrayFanOut(t *testing.T) {
	d, err := Open()
	require.NoError(t, err)
	ctx := context.Background()
	ns := driver.Namespace{Database: "testdb", Collection: "books"}

	_, err = d.InsertOne(ctx, ns, driver.Document{
		"title": "physics",
		"meta":  map[string]interface{}{"pages": 300},
		"authors": []interface{}{
			map[string]interface{}{"_dref": "a1", "_coll": "authors"},
			map[string]interface{}{"_dref": "a2", "_coll": "authors"},
		},
	})
	require.NoError(t, err)

	count, err := d.Count(ctx, ns, map[string]interface{}{"meta.pages": map[string]interface{}{"$gt": 200}}, driver.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Dotted paths fan out over array elements.
	count, err = d.Count(ctx, ns, map[string]interface{}{"authors._dref": "a2"}, driver.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = d.Count(ctx, ns, map[string]interface{}{"authors._dref": "zzz"}, driver.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestUpdates(t *testing.T) {
	d, err := Open()
	require.NoError(t, err)
	ids := seedPeople(t, d)
	ctx := context.Background()

	res, err := d.UpdateOne(ctx, testNS, map[string]interface{}{"_id": ids[0]},
		map[string]interface{}{"$set": map[string]interface{}{"color": "green", "account.plan": "free"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.MatchedCount)
	assert.Equal(t, int64(1), res.ModifiedCount)

	doc, err := d.FindOne(ctx, testNS, map[string]interface{}{"_id": ids[0]}, driver.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, "green", doc["color"])
	assert.Equal(t, "free", doc["account"].(map[string]interface{})["plan"])

	res, err = d.UpdateMany(ctx, testNS, nil,
		map[string]interface{}{"$inc": map[string]interface{}{"age": 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.MatchedCount)

	doc, err = d.FindOne(ctx, testNS, map[string]interface{}{"_id": ids[2]}, driver.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(41), doc["age"])
}

func TestDeletes(t *testing.T) {
	d, err := Open()
	require.NoError(t, err)
	seedPeople(t, d)
	ctx := context.Background()

	res, err := d.DeleteOne(ctx, testNS, map[string]interface{}{"color": "red"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.DeletedCount)

	res, err = d.DeleteMany(ctx, testNS, map[string]interface{}{"age": map[string]interface{}{"$gte": 0}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.DeletedCount)

	count, err := d.Count(ctx, testNS, nil, driver.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestBulkWrite(t *testing.T) {
	d, err := Open()
	require.NoError(t, err)
	ids := seedPeople(t, d)
	ctx := context.Background()

	res, err := d.BulkWrite(ctx, testNS, []driver.WriteModel{
		&driver.UpdateOneModel{
			Selector: map[string]interface{}{"_id": ids[0]},
			Update:   map[string]interface{}{"$set": map[string]interface{}{"name": "joejoe"}},
		},
		&driver.ReplaceOneModel{
			Selector:    map[string]interface{}{"_id": ids[1]},
			Replacement: map[string]interface{}{"name": "jilly", "age": 31},
		},
		&driver.DeleteOneModel{
			Selector: map[string]interface{}{"_id": ids[2]},
		},
	}, driver.BulkOptions{Ordered: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.MatchedCount)
	assert.Equal(t, int64(2), res.ModifiedCount)
	assert.Equal(t, int64(1), res.DeletedCount)

	doc, err := d.FindOne(ctx, testNS, map[string]interface{}{"_id": ids[1]}, driver.FindOptions{})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "jilly", doc["name"])
	// Replacement preserves the primary identifier.
	assert.Equal(t, ids[1], doc["_id"])
	assert.NotContains(t, doc, "color")
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dngo")

	d, err := Open(WithSnapshotFile(path))
	require.NoError(t, err)
	seedPeople(t, d)
	require.NoError(t, d.Close())

	reloaded, err := Open(WithSnapshotFile(path))
	require.NoError(t, err)

	ctx := context.Background()
	count, err := reloaded.Count(ctx, testNS, nil, driver.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	cur, err := reloaded.Find(ctx, testNS, map[string]interface{}{"age": map[string]interface{}{"$gte": 25}}, driver.FindOptions{
		Sort: []driver.SortField{driver.Asc("age")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"jill", "bob"}, collectNames(t, cur))
}

func TestFlushDuringWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.dngo")
	d, err := Open(WithSnapshotFile(path))
	require.NoError(t, err)
	ids := seedPeople(t, d)
	ctx := context.Background()

	// Flushes must not observe the live document maps while updates
	// mutate them in place.
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 200; i++ {
			update := map[string]interface{}{"$inc": map[string]interface{}{"age": 1}}
			if _, err := d.UpdateOne(ctx, testNS, map[string]interface{}{"_id": ids[0]}, update); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	for i := 0; i < 50; i++ {
		require.NoError(t, d.Flush())
	}
	require.NoError(t, <-done)

	require.NoError(t, d.Close())
	reloaded, err := Open(WithSnapshotFile(path))
	require.NoError(t, err)
	count, err := reloaded.Count(ctx, testNS, nil, driver.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestCursorSnapshotIsolation(t *testing.T) {
	d, err := Open()
	require.NoError(t, err)
	seedPeople(t, d)
	ctx := context.Background()

	cur, err := d.Find(ctx, testNS, nil, driver.FindOptions{})
	require.NoError(t, err)
	_, err = d.DeleteMany(ctx, testNS, nil)
	require.NoError(t, err)

	// The cursor iterates its snapshot even after the delete.
	assert.Len(t, collectNames(t, cur), 3)
}
