package metadata

import (
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"numerus/internal/core/entity"
	"numerus/internal/core/id"
)

// Inspect analyzes a struct and returns its EntityDef. Embedded structs are
// flattened, so BaseDocument audit fields appear beside the entity's own.
func Inspect(e interface{}, name string, entityType EntityType) EntityDef {
	t := reflect.TypeOf(e)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if name == "" {
		name = t.Name()
	}

	def := EntityDef{
		Name:   name,
		Label:  guessLabel(name),
		Type:   entityType,
		Fields: make([]FieldDef, 0),
	}

	inspectStruct(t, &def)

	return def
}

func inspectStruct(t reflect.Type, def *EntityDef) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.PkgPath != "" { // unexported
			continue
		}

		if field.Anonymous {
			inspectStruct(field.Type, def)
			continue
		}

		fDef := FieldDef{
			Name:     jsonName(field),
			Label:    guessLabel(field.Name),
			Required: isRequired(field),
			ReadOnly: isReadOnly(field),
		}

		// CDC columns and other json:"-" fields stay out of the API shape.
		if fDef.Name == "-" {
			continue
		}

		mapFieldType(&fDef, field, def.Name)

		def.Fields = append(def.Fields, fDef)
	}
}

// enumOptions lists the value sets of the known enum types. Reflection cannot
// enumerate a const block, so new enums must be added here by hand.
var enumOptions = map[reflect.Type][]string{
	reflect.TypeOf(entity.Kind("")):   stringOptions(entity.Kinds()),
	reflect.TypeOf(entity.Status("")): stringOptions(entity.Statuses()),
}

func stringOptions[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

func mapFieldType(def *FieldDef, field reflect.StructField, owner string) {
	t := field.Type
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == reflect.TypeOf(id.ID{}) {
		def.Type = TypeReference
		def.ReferenceType = referenceTarget(field.Name, owner)
		return
	}

	if opts, ok := enumOptions[t]; ok {
		def.Type = TypeEnum
		def.Options = opts
		return
	}

	// types.Money aliases decimal.Decimal.
	if t == reflect.TypeOf(decimal.Decimal{}) {
		def.Type = TypeMoney
		def.Scale = 2
		return
	}

	if t == reflect.TypeOf(time.Time{}) {
		def.Type = TypeDate
		return
	}

	// String-typed foreign keys, e.g. the catalog ParentID.
	if t.Kind() == reflect.String && field.Name != "ID" && strings.HasSuffix(field.Name, "ID") {
		def.Type = TypeReference
		def.ReferenceType = referenceTarget(field.Name, owner)
		return
	}

	switch t.Kind() {
	case reflect.String:
		def.Type = TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		def.Type = TypeInteger
	case reflect.Float32, reflect.Float64:
		def.Type = TypeNumber
		def.Scale = 2
	case reflect.Bool:
		def.Type = TypeBoolean
	case reflect.Map, reflect.Slice:
		def.Type = TypeObject
	default:
		def.Type = TypeString // fallback
	}
}

// referenceTarget resolves which entity a UUID field points at. ParentID is a
// self reference inside hierarchical catalogs; link endpoints point back at
// documents.
func referenceTarget(fieldName, owner string) string {
	switch fieldName {
	case "ID", "LinkID":
		return "" // primary key, not a cross-reference
	case "ParentID":
		return owner
	case "SourceID", "DerivedID":
		return "Document"
	}
	return strings.TrimSuffix(fieldName, "ID")
}

func jsonName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok {
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			return parts[0]
		}
	}
	// Fallback: camelCase
	runes := []rune(field.Name)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// isRequired mirrors the entity Validate methods: UUID references must be
// set, and the named fields are rejected when empty.
func isRequired(field reflect.StructField) bool {
	if tag, ok := field.Tag.Lookup("binding"); ok {
		return strings.Contains(tag, "required")
	}
	if field.Type == reflect.TypeOf(id.ID{}) {
		return field.Name != "ID"
	}
	switch field.Name {
	case "Name", "CompanyName", "Kind", "Date":
		return true
	}
	return false
}

// isReadOnly flags fields the write path never accepts from a client:
// identity and audit stamps, plus Number and Status, which change only
// through the numbering engine and status transitions.
func isReadOnly(field reflect.StructField) bool {
	switch field.Name {
	case "ID", "LinkID", "Version", "Number", "Status",
		"CreatedAt", "UpdatedAt", "CreatedBy", "UpdatedBy":
		return true
	}
	return false
}

// guessLabel splits CamelCase into words: "AllowManualNumbers" becomes
// "Allow Manual Numbers", "WorkspaceID" becomes "Workspace ID".
func guessLabel(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				b.WriteRune(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
