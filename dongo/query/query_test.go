package query

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dongo-odm/dongo/dongo/driver"
)

func TestTranslateTermOperators(t *testing.T) {
	ops := []string{"gte", "lte", "gt", "lt", "eq", "ne", "nin", "in", "regex", "exists"}
	for _, op := range ops {
		path, cond := TranslateTerm("age__"+op, 5)
		if path != "age" {
			t.Errorf("op %s: path = %q, want age", op, path)
		}
		want := map[string]interface{}{"$" + op: 5}
		if !reflect.DeepEqual(cond, want) {
			t.Errorf("op %s: cond = %v, want %v", op, cond, want)
		}
	}
}

func TestTranslateTermNestedPaths(t *testing.T) {
	path, cond := TranslateTerm("accounts__creditcard__gt", 10000)
	if path != "accounts.creditcard" {
		t.Errorf("path = %q, want accounts.creditcard", path)
	}
	if !reflect.DeepEqual(cond, map[string]interface{}{"$gt": 10000}) {
		t.Errorf("cond = %v, want $gt 10000", cond)
	}

	// No recognized suffix: the whole term is a literal nested path.
	path, cond = TranslateTerm("accounts__creditcard", 1000)
	if path != "accounts.creditcard" || cond != 1000 {
		t.Errorf("got %q=%v, want accounts.creditcard=1000", path, cond)
	}

	// A field that happens to end in a non-operator word stays literal.
	path, cond = TranslateTerm("authors___dref", "abc")
	if path != "authors._dref" || cond != "abc" {
		t.Errorf("got %q=%v, want authors._dref=abc", path, cond)
	}
}

func TestTranslateTermBare(t *testing.T) {
	path, cond := TranslateTerm("name", "joe")
	if path != "name" || cond != "joe" {
		t.Errorf("got %q=%v, want name=joe", path, cond)
	}
}

func TestBuildPartitionsOptions(t *testing.T) {
	node, opts := Build(Predicates{
		"age__gte":  25,
		"color":     "red",
		"__sort":    "age",
		"__limit":   10,
		"__timeout": false,
		"__hint":    "age_1",
	})

	want := Node{
		"age":   map[string]interface{}{"$gte": 25},
		"color": "red",
	}
	if !reflect.DeepEqual(node, want) {
		t.Errorf("node = %v, want %v", node, want)
	}

	if len(opts.Sort) != 1 || opts.Sort[0] != driver.Asc("age") {
		t.Errorf("sort = %v, want one ascending age field", opts.Sort)
	}
	if opts.Limit == nil || *opts.Limit != 10 {
		t.Errorf("limit = %v, want 10", opts.Limit)
	}
	if !opts.NoCursorTimeout {
		t.Error("timeout=false should invert into NoCursorTimeout=true")
	}
	if opts.Extra["hint"] != "age_1" {
		t.Errorf("extra = %v, want hint passthrough", opts.Extra)
	}
}

func TestBuildNoTimeoutAlias(t *testing.T) {
	_, opts := Build(Predicates{"__no_timeout": true})
	if !opts.NoCursorTimeout {
		t.Error("__no_timeout=true should set NoCursorTimeout")
	}
}

func TestNormalizeSort(t *testing.T) {
	got := NormalizeSort("age")
	if len(got) != 1 || got[0] != driver.Asc("age") {
		t.Errorf("NormalizeSort(string) = %v", got)
	}
	spec := []driver.SortField{driver.Desc("age"), driver.Asc("name")}
	if !reflect.DeepEqual(NormalizeSort(spec), spec) {
		t.Error("NormalizeSort should pass slices through")
	}
	if NormalizeSort(42) != nil {
		t.Error("NormalizeSort on unsupported type should be nil")
	}
}

func TestComposeSameRoot(t *testing.T) {
	n := NewAnd()
	a, _ := Build(Predicates{"x": 1})
	b, _ := Build(Predicates{"y": 2})
	if err := n.Compose(a); err != nil {
		t.Fatalf("compose a: %v", err)
	}
	if err := n.Compose(b); err != nil {
		t.Fatalf("compose b: %v", err)
	}

	children, ok := n["$and"].([]interface{})
	if !ok || len(children) != 2 {
		t.Fatalf("children = %v, want two", n["$and"])
	}
	if !reflect.DeepEqual(children[0], map[string]interface{}{"x": 1}) {
		t.Errorf("first child = %v", children[0])
	}
	if !reflect.DeepEqual(children[1], map[string]interface{}{"y": 2}) {
		t.Errorf("second child = %v", children[1])
	}
}

func TestComposeUntypedRoot(t *testing.T) {
	n, _ := Build(Predicates{"x": 1})
	other, _ := Build(Predicates{"y": 2})
	if err := n.Compose(other); !errors.Is(err, ErrComposition) {
		t.Errorf("Compose on untyped root error = %v, want ErrComposition", err)
	}
}

func TestAndOrAreNonMutating(t *testing.T) {
	a, _ := Build(Predicates{"x": 1})
	b, _ := Build(Predicates{"y": 2})

	combined := Or(a, b)
	children := combined["$or"].([]interface{})
	if len(children) != 2 {
		t.Fatalf("or children = %d, want 2", len(children))
	}
	if len(a) != 1 || len(b) != 1 {
		t.Error("Or must not mutate its inputs")
	}

	combined = And(a, b)
	if len(combined["$and"].([]interface{})) != 2 {
		t.Error("And should wrap both nodes")
	}
}
