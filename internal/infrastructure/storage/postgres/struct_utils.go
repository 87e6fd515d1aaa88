package postgres

import (
	"reflect"
	"sync"
)

// tablePlan is the flattened view of a struct's db-tagged fields. Index
// paths reach through embedded structs, so mapping a value later is a flat
// loop with no recursion.
type tablePlan struct {
	columns []string
	paths   [][]int
}

var planCache sync.Map // reflect.Type -> *tablePlan

func planFor(t reflect.Type) *tablePlan {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := planCache.Load(t); ok {
		return cached.(*tablePlan)
	}

	plan := &tablePlan{}
	if t.Kind() == reflect.Struct {
		walkDBFields(t, nil, plan)
	}
	actual, _ := planCache.LoadOrStore(t, plan)
	return actual.(*tablePlan)
}

func walkDBFields(t reflect.Type, prefix []int, plan *tablePlan) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := append(append([]int(nil), prefix...), i)

		if f.Anonymous {
			ft := f.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				walkDBFields(ft, path, plan)
			}
			continue
		}

		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}

		plan.columns = append(plan.columns, tag)
		plan.paths = append(plan.paths, path)
	}
}

// ExtractDBColumns lists the columns declared by T's db tags, embedded
// structs included. Repos call it once at construction to build their
// SELECT lists.
func ExtractDBColumns[T any]() []string {
	var zero T
	plan := planFor(reflect.TypeOf(zero))

	// Hand out a copy; the cached slice must stay immutable.
	cols := make([]string, len(plan.columns))
	copy(cols, plan.columns)
	return cols
}

// StructToMap flattens a struct into column -> value pairs following the
// same db tags. The repos feed the result to squirrel INSERT and UPDATE
// builders.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	plan := planFor(rv.Type())
	out := make(map[string]any, len(plan.columns))
	for i, col := range plan.columns {
		out[col] = rv.FieldByIndex(plan.paths[i]).Interface()
	}
	return out
}
